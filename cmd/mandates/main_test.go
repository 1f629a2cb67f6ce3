package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func fakeAPI(t *testing.T, permissions []string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/members/5/mandates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeData(w, http.StatusOK, map[string]any{"mandates": []map[string]any{
			{"id": "m1", "member_id": 5, "role": "SECRETARY", "start_date": "2020-01-01", "end_date": "2020-12-31", "is_active": false},
			{"id": "m2", "member_id": 5, "role": "TREASURER", "start_date": "2021-01-01", "end_date": "2099-12-31", "is_active": true},
		}})
	})
	mux.HandleFunc("GET /api/v1/members/5/mandates/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"mandate": map[string]any{
			"id": r.PathValue("id"), "member_id": 5, "role": "TREASURER",
			"start_date": "2021-01-01", "end_date": "2099-12-31", "is_active": true,
		}})
	})
	mux.HandleFunc("GET /api/v1/members/5", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"member": map[string]any{
			"id": 5, "first_name": "Jane", "last_name": "Doe", "email": "jane@example.org", "role": "TREASURER",
		}})
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"member":      map[string]any{"id": 9, "first_name": "Sam", "last_name": "Clerk"},
			"permissions": permissions,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	globalFlags.apiURL, globalFlags.token, globalFlags.email, globalFlags.memberID = "", "", "", 0

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListFiltersByStatus(t *testing.T) {
	srv := fakeAPI(t, nil)

	out, err := run(t, "--api", srv.URL+"/api/v1", "--token", "tok", "-m", "5", "list", "--status", "inactive")
	require.NoError(t, err)
	assert.Contains(t, out, "m1")
	assert.NotContains(t, out, "m2")

	_, err = run(t, "--api", srv.URL+"/api/v1", "--token", "tok", "-m", "5", "list", "--from", "2020-01-01")
	assert.ErrorContains(t, err, "--from and --to")
}

func TestListRequiresMember(t *testing.T) {
	srv := fakeAPI(t, nil)
	_, err := run(t, "--api", srv.URL+"/api/v1", "--token", "tok", "list")
	assert.ErrorContains(t, err, "--member")
}

func TestExportWritesStoreState(t *testing.T) {
	dir := t.TempDir()

	denied := fakeAPI(t, []string{string(model.PermissionMandatesRead)})
	_, err := run(t, "--api", denied.URL+"/api/v1", "--token", "tok", "-m", "5", "export", "--dir", dir)
	assert.ErrorContains(t, err, "may not export")

	srv := fakeAPI(t, []string{string(model.PermissionExportsCreate)})
	out, err := run(t, "--api", srv.URL+"/api/v1", "--token", "tok", "-m", "5", "export", "--dir", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "mandates_jane_doe.json")
	assert.Contains(t, out, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	restored := mandate.NewStore(nil, 5)
	require.NoError(t, restored.Load(f))
	assert.Len(t, restored.Snapshot(), 2)
}

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery("sec", "active", "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, mandate.StatusActive, q.Status)
	require.NotNil(t, q.DateRange)
	assert.Equal(t, "2024-12-31", q.DateRange.To.String())

	_, err = buildQuery("", "sometimes", "", "")
	assert.Error(t, err)

	_, err = buildQuery("", "", "2024-01-01", "31/12/2024")
	assert.ErrorContains(t, err, "--to")
}

func TestPrintMandates(t *testing.T) {
	var buf bytes.Buffer
	printMandates(&buf, nil)
	assert.Equal(t, "No mandates.\n", buf.String())

	buf.Reset()
	printMandates(&buf, []model.RoleMandate{{
		ID: "x", Role: model.RoleSecretary,
		StartDate: model.MustParseDate("2024-01-01"), EndDate: model.MustParseDate("2024-12-31"), IsActive: true,
	}})
	assert.Contains(t, buf.String(), "2024-12-31")
	assert.Contains(t, buf.String(), "ACTIVE")
}
