// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func healthy(b bool) *Binary {
	var m Binary
	if b {
		m.MarkHealthy()
	}
	return &m
}

func TestBinary_Healthy(t *testing.T) {
	t.Run("will be unhealthy", func(t *testing.T) {
		t.Run("if it is the zero value", func(t *testing.T) {
			var b Binary
			ok, err := b.Healthy(context.Background())
			require.NoError(t, err)
			require.False(t, ok)
		})

		t.Run("if it was marked unhealthy after being healthy", func(t *testing.T) {
			b := healthy(true)
			b.MarkUnhealthy()

			ok, err := b.Healthy(context.Background())
			require.NoError(t, err)
			require.False(t, ok)
		})
	})
}

func TestAndMonitor_Healthy(t *testing.T) {
	checkErr := errors.New("check failed")

	testCases := []struct {
		Name     string
		Monitors []Monitor
		Healthy  bool
		Err      error
	}{
		{
			Name:     "all healthy",
			Monitors: []Monitor{healthy(true), healthy(true)},
			Healthy:  true,
		},
		{
			Name:     "one unhealthy",
			Monitors: []Monitor{healthy(true), healthy(false), healthy(true)},
		},
		{
			Name: "one fails",
			Monitors: []Monitor{
				healthy(true),
				MonitorFunc(func(ctx context.Context) (bool, error) {
					return false, checkErr
				}),
			},
			Err: checkErr,
		},
		{
			Name:    "no monitors",
			Healthy: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			ok, err := And(testCase.Monitors...).Healthy(context.Background())
			require.ErrorIs(t, err, testCase.Err)
			require.Equal(t, testCase.Healthy, ok)
		})
	}
}

func TestOrMonitor_Healthy(t *testing.T) {
	t.Run("will be healthy", func(t *testing.T) {
		t.Run("if at least one monitor is healthy", func(t *testing.T) {
			ok, err := Or(healthy(false), healthy(true)).Healthy(context.Background())
			require.NoError(t, err)
			require.True(t, ok)
		})
	})

	t.Run("will join errors", func(t *testing.T) {
		t.Run("if no monitor is healthy", func(t *testing.T) {
			e1 := errors.New("first")
			e2 := errors.New("second")

			ok, err := Or(
				MonitorFunc(func(ctx context.Context) (bool, error) { return false, e1 }),
				healthy(false),
				MonitorFunc(func(ctx context.Context) (bool, error) { return false, e2 }),
			).Healthy(context.Background())
			require.False(t, ok)
			require.ErrorIs(t, err, e1)
			require.ErrorIs(t, err, e2)
		})
	})
}

func TestHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	testCases := []struct {
		Name    string
		Monitor Monitor
		Status  int
	}{
		{
			Name:    "healthy",
			Monitor: healthy(true),
			Status:  http.StatusOK,
		},
		{
			Name:    "unhealthy",
			Monitor: healthy(false),
			Status:  http.StatusServiceUnavailable,
		},
		{
			Name: "failing",
			Monitor: MonitorFunc(func(ctx context.Context) (bool, error) {
				return true, errors.New("unreachable dependency")
			}),
			Status: http.StatusServiceUnavailable,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/health/readiness", nil)

			Handler(log, testCase.Monitor).ServeHTTP(w, r)
			require.Equal(t, testCase.Status, w.Code)
		})
	}
}
