package authority_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/pkg/scope"
	"github.com/systmms/credbroker/pkg/secret"
)

var instanceID = uuid.MustParse("5a4d0e3a-1b9c-4a7e-9b61-7f0b1c2d3e4f")

func newVsts(t *testing.T, tokenService string) *authority.Vsts {
	t.Helper()
	return authority.NewVsts(newTransport(t), authority.VstsOptions{
		BaseDomain:      "127.0.0.1",
		TokenServiceURL: tokenService,
	})
}

func TestDetectAuthority(t *testing.T) {
	t.Parallel()

	tenant := uuid.MustParse("72f988bf-86f1-41af-91ab-2d7cd011db47")
	tests := []struct {
		name       string
		header     string
		wantTenant uuid.UUID
		wantOK     bool
	}{
		{"aad", tenant.String(), tenant, true},
		{"aad with several tenants", tenant.String() + ", " + uuid.NewString(), tenant, true},
		{"msa", "", uuid.Nil, true},
		{"msa nil guid", uuid.Nil.String(), uuid.Nil, true},
		{"garbage", "not-a-guid", uuid.Nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "/_apis/connectiondata", r.URL.Path)
				if tt.header != "" {
					w.Header().Set("X-VSS-ResourceTenant", tt.header)
				}
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer srv.Close()

			got, ok := newVsts(t, "").DetectAuthority(context.Background(), secret.MustTargetURI(srv.URL+"/DefaultCollection/_git/repo"))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTenant, got)
		})
	}
}

func TestDetectAuthorityDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_apis/connectiondata" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.Header().Set("X-VSS-ResourceTenant", uuid.NewString())
	}))
	defer srv.Close()

	tenant, ok := newVsts(t, "").DetectAuthority(context.Background(), secret.MustTargetURI(srv.URL))
	assert.True(t, ok)
	assert.Equal(t, uuid.Nil, tenant)
}

func TestDetectAuthorityRejectsOtherHosts(t *testing.T) {
	t.Parallel()

	v := authority.NewVsts(newTransport(t), authority.VstsOptions{})
	assert.True(t, v.IsVstsHost(secret.MustTargetURI("https://contoso.visualstudio.com")))
	assert.False(t, v.IsVstsHost(secret.MustTargetURI("https://contosovisualstudio.com")))

	_, ok := v.DetectAuthority(context.Background(), secret.MustTargetURI("https://github.com"))
	assert.False(t, ok)
}

func vstsServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorized := r.Header.Get("Authorization") == "Bearer access-token" ||
			r.Header.Get("Cookie") == "FedAuth=fed; FedAuth1=eration"
		if user, pass, ok := r.BasicAuth(); ok && user == secret.PersonalAccessTokenUsername && pass == "pat" {
			authorized = true
		}
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/_apis/connectiondata":
			_, _ = io.WriteString(w, `{"instanceId":"`+instanceID.String()+`"}`)
		case "/_apis/token/sessiontokens":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "1.0", r.URL.Query().Get("api-version"))
			var req struct {
				Scope          string   `json:"scope"`
				TargetAccounts []string `json:"targetAccounts"`
				DisplayName    string   `json:"displayName"`
			}
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "vso.code_write vso.packaging", req.Scope)
			assert.Equal(t, []string{instanceID.String()}, req.TargetAccounts)
			assert.Contains(t, req.DisplayName, "Git: http://127.0.0.1")

			value := "full-pat"
			if r.URL.Query().Get("tokentype") == "compact" {
				value = "compact-pat"
			}
			_, _ = io.WriteString(w, `{"token":"`+value+`"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGeneratePersonalAccessToken(t *testing.T) {
	t.Parallel()

	srv := vstsServer(t)
	defer srv.Close()

	v := newVsts(t, srv.URL)
	target := secret.MustTargetURI(srv.URL)

	access, err := secret.NewToken("access-token", secret.TokenAzureAccess, uuid.Nil)
	require.NoError(t, err)

	pat := v.GeneratePersonalAccessToken(context.Background(), target, access, scope.VstsDefault, true)
	require.NotNil(t, pat)
	assert.Equal(t, "compact-pat", pat.Value())
	assert.Equal(t, secret.TokenPersonal, pat.Type())
	assert.Equal(t, instanceID, pat.TargetIdentity())

	federated := secret.MustToken("FedAuth=fed; FedAuth1=eration", secret.TokenAzureFederated)
	pat = v.GeneratePersonalAccessToken(context.Background(), target, federated, scope.VstsDefault, false)
	require.NotNil(t, pat)
	assert.Equal(t, "full-pat", pat.Value())

	rejected := secret.MustToken("stale", secret.TokenAzureAccess)
	assert.Nil(t, v.GeneratePersonalAccessToken(context.Background(), target, rejected, scope.VstsDefault, true))

	unsupported := secret.MustToken("x", secret.TokenTest)
	assert.Nil(t, v.GeneratePersonalAccessToken(context.Background(), target, unsupported, scope.VstsDefault, true))
}

func TestVstsValidate(t *testing.T) {
	t.Parallel()

	srv := vstsServer(t)
	defer srv.Close()

	v := newVsts(t, srv.URL)
	target := secret.MustTargetURI(srv.URL)

	assert.True(t, v.ValidateCredentials(context.Background(), target, secret.MustCredential(secret.PersonalAccessTokenUsername, "pat")))
	assert.False(t, v.ValidateCredentials(context.Background(), target, secret.MustCredential("john", "pat")))

	assert.True(t, v.ValidateToken(context.Background(), target, secret.MustToken("pat", secret.TokenPersonal)))
	assert.True(t, v.ValidateToken(context.Background(), target, secret.MustToken("access-token", secret.TokenAzureAccess)))
	assert.False(t, v.ValidateToken(context.Background(), target, secret.MustToken("nope", secret.TokenAzureAccess)))
}
