package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(logger, DatabaseCheck(nil))
	
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
	
		handler.HandleHealth(w, req)
	
		assert.Equal(t, http.StatusOK, w.Code)
	
		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
	
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.NotEmpty(t, data["timestamp"])
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database is available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
	
		mock.ExpectPing()
	
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	
		handler := NewHealthHandler(logger, DatabaseCheck(db))
	
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
	
		handler.HandleReadiness(w, req)
	
		assert.Equal(t, http.StatusOK, w.Code)
	
		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
	
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
	
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
	
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
	
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	
		handler := NewHealthHandler(logger, DatabaseCheck(db))
	
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
	
		handler.HandleReadiness(w, req)
	
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	
		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
	
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])
	
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])
	
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
	
		mock.ExpectPing()
	
		mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)
	
		handler := NewHealthHandler(logger, DatabaseCheck(db))
	
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
	
		handler.HandleReadiness(w, req)
	
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	
		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
	
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])
	
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])
	
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("healthy when no database configured", func(t *testing.T) {
		handler := NewHealthHandler(logger, DatabaseCheck(nil))
	
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
	
		handler.HandleReadiness(w, req)
	
		assert.Equal(t, http.StatusOK, w.Code)
	
		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
	
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
	
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
	})

	t.Run("reports each named check", func(t *testing.T) {
		handler := NewHealthHandler(logger,
			ReadinessCheck{Name: "credentials", Probe: func(context.Context) error { return nil }},
			ReadinessCheck{Name: "cache", Probe: func(context.Context) error { return errors.New("down") }},
		)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		checks := response["data"].(map[string]interface{})["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["credentials"])
		assert.Equal(t, "unhealthy", checks["cache"])
	})
}
