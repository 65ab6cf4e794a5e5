package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/domain/registers/ledger"
	"foodcoop/internal/domain/registers/stock"
	"foodcoop/internal/domain/subgroups"
	v1 "foodcoop/internal/infrastructure/http/v1"
	"foodcoop/internal/infrastructure/http/v1/handlers"
	"foodcoop/internal/infrastructure/metrics"
	"foodcoop/internal/infrastructure/storage/memory"
	"foodcoop/pkg/logger"
)

var now = time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)

type api struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	ledger  *ledger.Service

	apples, pears id.ID
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newAPI(t *testing.T, checks map[string]handlers.Pinger) *api {
	t.Helper()
	store := memory.New()
	a := &api{
		t:      t,
		store:  store,
		ledger: ledger.NewService(store),
		apples: id.New(),
		pears:  id.New(),
	}
	store.SetPrice(orders.ArticlePrice{ArticleID: a.apples, NetPrice: types.MustMoney("2"), Tax: decimal.Zero, UnitQuantity: 1})
	store.SetPrice(orders.ArticlePrice{ArticleID: a.pears, NetPrice: types.MustMoney("3"), Tax: decimal.Zero, UnitQuantity: 1})

	svc := orders.NewService(orders.ServiceConfig{
		Repo:      store,
		TxManager: store,
		Prices:    store,
		Ledger:    a.ledger,
		Stock:     stock.NewService(store),
		Stats:     subgroups.NewService(store),
		Auditor:   store,
		Settings: orders.Config{
			Markup: decimal.Zero,
			Now:    func() time.Time { return now },
		},
	})

	reg := prometheus.NewRegistry()
	a.handler = v1.NewRouter(v1.RouterConfig{
		Orders:         svc,
		Logger:         logger.Nop(),
		HealthChecks:   checks,
		Metrics:        metrics.NewHTTPMetrics(reg),
		MetricsHandler: metrics.Handler(reg),
	})
	return a
}

func (a *api) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type orderBody struct {
	ID             string  `json:"id"`
	State          string  `json:"state"`
	SupplierID     *string `json:"supplierId"`
	FoodcoopResult *string `json:"foodcoopResult"`
	Lines          []struct {
		ArticleID    string `json:"articleId"`
		UnitsOrdered int    `json:"unitsOrdered"`
		Price        *struct {
			Gross string `json:"gross"`
		} `json:"price"`
	} `json:"lines"`
}

type moneyBody struct {
	Amount string `json:"amount"`
}

func (a *api) createOrder(articles ...id.ID) orderBody {
	a.t.Helper()
	starts := now.Add(-72 * time.Hour)
	rec := a.do(http.MethodPost, "/api/v1/orders", "alice", map[string]any{
		"name":       "week 10",
		"supplierId": id.New().String(),
		"articleIds": id.Strings(articles),
		"starts":     starts,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderBody](a.t, rec)
}

func (a *api) placeRequest(orderID string, subgroupID, articleID id.ID, quantity int) {
	a.t.Helper()
	rec := a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/requests", "alice", map[string]any{
		"subgroupId": subgroupID.String(),
		"articleId":  articleID.String(),
		"quantity":   quantity,
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_OrderLifecycle(t *testing.T) {
	a := newAPI(t, nil)
	sgA, sgB := id.New(), id.New()
	a.store.RegisterSubgroup(sgA, types.MustMoney("100"))
	a.store.RegisterSubgroup(sgB, types.MustMoney("50"))

	o := a.createOrder(a.apples, a.pears)
	assert.Equal(t, "opened", o.State)
	require.NotNil(t, o.SupplierID)

	a.placeRequest(o.ID, sgA, a.apples, 5)
	a.placeRequest(o.ID, sgB, a.pears, 3)

	rec := a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/close", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[orderBody](t, rec)
	assert.Equal(t, "closed", closed.State)
	for _, l := range closed.Lines {
		require.NotNil(t, l.Price)
	}

	rec = a.do(http.MethodGet, "/api/v1/orders/"+o.ID+"/sums/groups", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "19.00", decode[moneyBody](t, rec).Amount)

	rec = a.do(http.MethodGet, "/api/v1/orders/"+o.ID+"/profit", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROFIT_UNAVAILABLE", decode[errorBody](t, rec).Error.Code)

	rec = a.do(http.MethodPut, "/api/v1/orders/"+o.ID+"/invoice", "bob", map[string]any{"netAmount": "15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/orders/"+o.ID+"/profit?excludeMarkup=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4.00", decode[moneyBody](t, rec).Amount)

	rec = a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/finish", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	finished := decode[orderBody](t, rec)
	assert.Equal(t, "finished", finished.State)
	require.NotNil(t, finished.FoodcoopResult)
	assert.Equal(t, "4.00", *finished.FoodcoopResult)

	balance, err := a.ledger.Balance(context.Background(), sgA)
	require.NoError(t, err)
	assert.Equal(t, "90", balance.String())

	rec = a.do(http.MethodGet, "/api/v1/orders?state=finished", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items      []map[string]any `json:"items"`
		TotalCount int64            `json:"totalCount"`
	}](t, rec)
	assert.Equal(t, int64(1), list.TotalCount)
}

func TestRouter_FinishDirectComments(t *testing.T) {
	a := newAPI(t, nil)
	o := a.createOrder(a.apples)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/close", "bob", nil).Code)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/finish-direct", "bob", nil).Code)

	rec := a.do(http.MethodGet, "/api/v1/orders/"+o.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[struct {
		Items []struct {
			UserID string `json:"userId"`
			Text   string `json:"text"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, comments.Items, 1)
	assert.Equal(t, "bob", comments.Items[0].UserID)
}

func TestRouter_Errors(t *testing.T) {
	a := newAPI(t, nil)
	o := a.createOrder(a.apples)

	t.Run("missing user on mutation", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/close", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode[errorBody](t, rec).Error.Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/api/v1/orders/"+o.ID+"/finish", "bob", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)
		assert.Equal(t, "opened", body.Error.Details["state"])
	})

	t.Run("bad id", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/api/v1/orders/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Error.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/api/v1/orders/"+id.New().String(), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown sum kind", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/api/v1/orders/"+o.ID+"/sums/tax", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty selection", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/api/v1/orders/"+o.ID+"/articles", "bob", map[string]any{"articleIds": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "NO_ARTICLES_SELECTED", decode[errorBody](t, rec).Error.Code)
	})

	t.Run("dropping requested article", func(t *testing.T) {
		sg := id.New()
		a.store.RegisterSubgroup(sg, types.MustMoney("10"))
		a.placeRequest(o.ID, sg, a.apples, 1)

		rec := a.do(http.MethodPut, "/api/v1/orders/"+o.ID+"/articles", "bob", map[string]any{
			"articleIds": []string{a.pears.String()},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "ORDERED_ARTICLES_WOULD_BE_DROPPED", body.Error.Code)
		assert.Equal(t, []any{a.apples.String()}, body.Error.Details["article_ids"])

		rec = a.do(http.MethodPut, "/api/v1/orders/"+o.ID+"/articles", "bob", map[string]any{
			"articleIds":     []string{a.pears.String()},
			"ignoreWarnings": true,
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t, map[string]handlers.Pinger{
		"database": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health/live", "", nil).Code)

	rec := a.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "foodcoop_http_requests_total")
}
