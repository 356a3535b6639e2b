package handlers

import (
	"net/http"
	"testing"

	"ledgerly/backend/models"
	"ledgerly/backend/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTransaction_Account(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanFree)

	in := expense(42.5, models.CategoryFood, models.NewDate(2024, 3, 10))
	rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decodeBody[models.Transaction](t, rr)
	assert.Equal(t, TestUserID, created.OwnerID)
	assert.Equal(t, 42.5, created.Amount)

	rr = serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions", nil, &session, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Transaction](t, rr), 1)
}

func TestAddTransaction_ValidationError(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanFree)

	in := expense(-1, models.CategoryFood, models.NewDate(2024, 3, 10))
	rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody[errorBody](t, rr)
	assert.Equal(t, "amount", body.Field)
}

func TestAddTransaction_MalformedBody(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanFree)

	req := newRequest(t, "POST", "/transactions", "not an object", &session, nil)
	rr := serve(env.h.AddTransaction, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddTransaction_FreePlanLimit(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanFree)

	for i := 0; i < services.DefaultFreeMaxTransactions; i++ {
		in := expense(10, models.CategoryFood, models.NewDate(2024, 3, 1+i))
		rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	in := expense(10, models.CategoryFood, models.NewDate(2024, 3, 20))
	rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
	require.Equal(t, http.StatusForbidden, rr.Code)

	body := decodeBody[capacityBody](t, rr)
	assert.False(t, body.Allowed)
	assert.NotEmpty(t, body.Reason)

	premium := userSession(models.PlanPremium)
	rr = serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &premium, nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestAddTransaction_GuestCapacity(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := guestSession()

	for i := 0; i < services.DefaultGuestCapacity; i++ {
		in := expense(5, models.CategoryLeisure, models.NewDate(2024, 3, 1+i))
		rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		created := decodeBody[models.Transaction](t, rr)
		assert.Equal(t, models.GuestOwnerID, created.OwnerID)
	}

	in := expense(5, models.CategoryLeisure, models.NewDate(2024, 3, 9))
	rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	body := decodeBody[capacityBody](t, rr)
	assert.Contains(t, body.Reason, "3")

	rr = serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions", nil, &session, nil))
	assert.Len(t, decodeBody[[]models.Transaction](t, rr), services.DefaultGuestCapacity)

	assert.Empty(t, env.transactions.items, "guest writes must not reach the account store")
}

func TestTransactionCRUD(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanFree)

	rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions",
		expense(20, models.CategoryTransport, models.NewDate(2024, 3, 2)), &session, nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody[models.Transaction](t, rr).ID
	vars := map[string]string{"id": id}

	rr = serve(env.h.GetTransaction, newRequest(t, "GET", "/transactions/"+id, nil, &session, vars))
	require.Equal(t, http.StatusOK, rr.Code)

	update := expense(25, models.CategoryHealth, models.NewDate(2024, 3, 3))
	rr = serve(env.h.UpdateTransaction, newRequest(t, "PUT", "/transactions/"+id, update, &session, vars))
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeBody[models.Transaction](t, rr)
	assert.Equal(t, 25.0, updated.Amount)
	assert.Equal(t, models.CategoryHealth, updated.Category)

	rr = serve(env.h.DeleteTransaction, newRequest(t, "DELETE", "/transactions/"+id, nil, &session, vars))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(env.h.GetTransaction, newRequest(t, "GET", "/transactions/"+id, nil, &session, vars))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListTransactions_Filters(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)
	session := userSession(models.PlanPremium)

	inputs := []models.TransactionInput{
		expense(10, models.CategoryFood, models.NewDate(2024, 2, 10)),
		expense(20, models.CategoryHousing, models.NewDate(2024, 3, 1)),
		{Kind: models.KindIncome, Category: models.CategoryOther, CustomLabel: "Salary", Amount: 1000, OccurredOn: models.NewDate(2024, 3, 5)},
	}
	for _, in := range inputs {
		rr := serve(env.h.AddTransaction, newRequest(t, "POST", "/transactions", in, &session, nil))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions?kind=expense&from=2024-03-01", nil, &session, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[[]models.Transaction](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, models.CategoryHousing, list[0].Category)

	rr = serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions?from=march", nil, &session, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(env.h.ListTransactionsByMonth, newRequest(t, "GET", "/transactions/month/2024/3", nil, &session,
		map[string]string{"year": "2024", "month": "3"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Transaction](t, rr), 2)

	rr = serve(env.h.ListTransactionsByMonth, newRequest(t, "GET", "/transactions/month/2024/13", nil, &session,
		map[string]string{"year": "2024", "month": "13"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransactions_NoSession(t *testing.T) {
	env := newTestEnv(t, services.MigrationClearAll)

	rr := serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions", nil, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	empty := services.Session{}
	rr = serve(env.h.ListTransactions, newRequest(t, "GET", "/transactions", nil, &empty, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
