package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

// assertDecimalField compares a decimal JSON field (marshaled as a quoted
// string) against an expected value, ignoring formatting differences.
func assertDecimalField(t *testing.T, obj map[string]interface{}, key, want, context string) {
	t.Helper()
	raw, ok := obj[key].(string)
	if !ok {
		t.Fatalf("%s: expected %q to be a decimal string, got %T (%v)", context, key, obj[key], obj[key])
	}
	got, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("%s: invalid decimal in %q: %v", context, key, err)
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: expected %s, got %s", context, want, got)
	}
}

func TestAuthFlow(t *testing.T) {
	app := setupApp(t)

	token, _ := app.registerUser(t, "auth@example.com", "password123")

	t.Run("login_returns_tokens", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"auth@example.com","password":"password123"}`, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		tokens := result["tokens"].(map[string]interface{})
		if tokens["access_token"] == "" || tokens["refresh_token"] == "" {
			t.Error("expected both tokens in the login response")
		}
	})

	t.Run("refresh_issues_new_access_token", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"auth@example.com","password":"password123"}`, "")
		tokens := parseJSON(t, rec)["tokens"].(map[string]interface{})

		body := fmt.Sprintf(`{"refresh_token":%q}`, tokens["refresh_token"].(string))
		rec = app.request("POST", "/api/v1/auth/refresh", body, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("refresh failed: %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("profile_requires_auth", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/profile", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without a token, got %d", rec.Code)
		}

		rec = app.request("GET", "/api/v1/profile", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("profile failed: %d %s", rec.Code, rec.Body.String())
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["email"] != "auth@example.com" {
			t.Errorf("expected profile email, got %v", user["email"])
		}
	})

	t.Run("wrong_password_rejected", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"auth@example.com","password":"nope"}`, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for wrong password, got %d", rec.Code)
		}
	})
}

// TestLedgerFlow walks a full multi-currency bookkeeping scenario through the
// HTTP API: income, expense, compensation and its deletion, with account
// balance, converted values, and balance history checked at each step.
func TestLedgerFlow(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "ledger@example.com", "password123")

	// Hryvnia wallet, empty at creation.
	rec := app.request("POST", "/api/v1/accounts", `{"name":"Wallet","currency":"UAH"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	account := parseJSON(t, rec)["account"].(map[string]interface{})
	accountID := account["id"].(string)
	assertDecimalField(t, account, "balance", "0", "new account")

	getAccount := func() map[string]interface{} {
		rec := app.request("GET", "/api/v1/accounts/"+accountID, "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("get account failed: %d %s", rec.Code, rec.Body.String())
		}
		return parseJSON(t, rec)["account"].(map[string]interface{})
	}

	createTransaction := func(body string) map[string]interface{} {
		rec := app.request("POST", "/api/v1/transactions", body, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
		}
		return parseJSON(t, rec)["transaction"].(map[string]interface{})
	}

	// Salary on March 1st.
	createTransaction(fmt.Sprintf(
		`{"account_id":%q,"type":"income","amount":"500","executed_at":"2024-03-01T10:00:00Z"}`, accountID))
	assertDecimalField(t, getAccount(), "balance", "500", "after income")

	// Groceries on March 10th. Converted values come back with the row.
	expense := createTransaction(fmt.Sprintf(
		`{"account_id":%q,"type":"expense","amount":"100","executed_at":"2024-03-10T10:00:00Z"}`, accountID))
	expenseID := expense["id"].(string)
	values := expense["converted_values"].(map[string]interface{})
	assertDecimalField(t, values, "USD", "4", "expense in dollars")
	assertDecimalField(t, values, "EUR", "3.33", "expense in euros")
	assertDecimalField(t, getAccount(), "balance", "400", "after expense")

	// A partial refund two days later nets the expense down to 75 UAH.
	compensation := createTransaction(fmt.Sprintf(
		`{"account_id":%q,"type":"income","amount":"25","executed_at":"2024-03-12T10:00:00Z","original_expense_id":%q}`,
		accountID, expenseID))
	compensationID := compensation["id"].(string)
	assertDecimalField(t, getAccount(), "balance", "425", "after compensation")

	rec = app.request("GET", "/api/v1/transactions/"+expenseID, "", token)
	netted := parseJSON(t, rec)["transaction"].(map[string]interface{})["converted_values"].(map[string]interface{})
	assertDecimalField(t, netted, "UAH", "75", "netted expense")
	assertDecimalField(t, netted, "USD", "3", "netted expense in dollars")

	// History holds one entry per instant, balance before the instant applies.
	rec = app.request("GET", "/api/v1/accounts/"+accountID+"/history", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get history failed: %d %s", rec.Code, rec.Body.String())
	}
	entries := parseJSON(t, rec)["data"].([]interface{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(entries))
	}
	for i, want := range []string{"0", "500", "400"} {
		entry := entries[i].(map[string]interface{})
		assertDecimalField(t, entry, "balance", want, fmt.Sprintf("history entry %d", i))
	}

	// Deleting the compensation restores both the balance and the gross
	// expense value.
	rec = app.request("DELETE", "/api/v1/transactions/"+compensationID, "", token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete compensation failed: %d %s", rec.Code, rec.Body.String())
	}
	assertDecimalField(t, getAccount(), "balance", "400", "after compensation removed")

	rec = app.request("GET", "/api/v1/transactions/"+expenseID, "", token)
	restored := parseJSON(t, rec)["transaction"].(map[string]interface{})["converted_values"].(map[string]interface{})
	assertDecimalField(t, restored, "UAH", "100", "restored expense")
}

func TestDebtFlow(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "debt@example.com", "password123")

	rec := app.request("POST", "/api/v1/accounts", `{"name":"Wallet","currency":"UAH"}`, token)
	accountID := parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)

	rec = app.request("POST", "/api/v1/debts", `{"debtor":"Alex","currency":"EUR"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create debt failed: %d %s", rec.Code, rec.Body.String())
	}
	debt := parseJSON(t, rec)["debt"].(map[string]interface{})
	debtID := debt["id"].(string)

	// Lending 30 UAH is 1 EUR of debt.
	body := fmt.Sprintf(
		`{"account_id":%q,"type":"expense","amount":"30","executed_at":"2024-03-10T10:00:00Z","debt_id":%q}`,
		accountID, debtID)
	rec = app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create debt transaction failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/debts/"+debtID, "", token)
	debt = parseJSON(t, rec)["debt"].(map[string]interface{})
	assertDecimalField(t, debt, "balance", "1", "debt after lending")

	// Closed debts refuse new transactions.
	rec = app.request("POST", "/api/v1/debts/"+debtID+"/close", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("close debt failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code == http.StatusCreated {
		t.Error("expected transaction against a closed debt to be rejected")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	app := setupApp(t)
	ownerToken, _ := app.registerUser(t, "owner@example.com", "password123")
	strangerToken, _ := app.registerUser(t, "stranger@example.com", "password123")

	rec := app.request("POST", "/api/v1/accounts", `{"name":"Private","currency":"UAH"}`, ownerToken)
	accountID := parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)

	rec = app.request("GET", "/api/v1/accounts/"+accountID, "", strangerToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's account, got %d", rec.Code)
	}
}

func TestRateConversion(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "rates@example.com", "password123")

	rec := app.request("GET", "/api/v1/rates/convert?amount=100&from=UAH", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert failed: %d %s", rec.Code, rec.Body.String())
	}
	values := parseJSON(t, rec)["values"].(map[string]interface{})
	assertDecimalField(t, values, "USD", "4", "converted dollars")
	assertDecimalField(t, values, "HUF", "1000", "converted forints")
}
