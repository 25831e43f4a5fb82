//go:build integration

// Package integration runs end-to-end checks against a live motor-credito
// started with mock providers:
//
//	MOTOR_TENANTS=integration-tenant go run ./cmd/motor-credito
//	go test -tags=integration -v ./tests/integration/...
//
// The mock payroll reports a 4,900,000 net income from FONDO_NACIONAL_MAGISTERIO,
// the mock identity an applicant aged 58 and the mock bureau a clean 720
// score, so an unremarkable application is approved unless a policy rule says
// otherwise.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("MOTOR_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "integration-tenant",
	}
}

// ApplicationRequest mirrors the POST /credit/evaluate body.
type ApplicationRequest struct {
	DocumentNumber      string  `json:"documentNumber"`
	DocumentType        string  `json:"documentType,omitempty"`
	Payer               string  `json:"payer"`
	DeclaredGrossIncome float64 `json:"declaredGrossIncome"`
	TenureYears         int     `json:"tenureYears"`
	TenureExtraMonths   *int    `json:"tenureExtraMonths,omitempty"`
	RequestedAmount     float64 `json:"requestedAmount"`
	RequestedTermMonths *int    `json:"requestedTermMonths,omitempty"`
}

// EvaluationResponse is what the evaluation endpoints return.
type EvaluationResponse struct {
	EvaluationID   string         `json:"evaluationId"`
	ApplicationID  string         `json:"applicationId"`
	Status         string         `json:"status"`
	Approved       bool           `json:"approved"`
	RuleID         string         `json:"ruleId"`
	RejectionCode  string         `json:"rejectionCode"`
	Reason         string         `json:"reason"`
	ModelVariables map[string]any `json:"modelVariables"`
	Metadata       struct {
		TraceID              string `json:"traceId"`
		HardRulesEvaluated   int    `json:"hardRulesEvaluated"`
		PolicyRulesEvaluated int    `json:"policyRulesEvaluated"`
		RecentApplications   int64  `json:"recentApplications"`
	} `json:"metadata"`
}

func uniqueDocument(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1_000_000_000)
}

func newApplication(document string) ApplicationRequest {
	term := 72
	return ApplicationRequest{
		DocumentNumber:      document,
		DocumentType:        "CC",
		Payer:               "FONDO NACIONAL MAGISTERIO",
		DeclaredGrossIncome: 6_000_000,
		TenureYears:         15,
		RequestedAmount:     40_000_000,
		RequestedTermMonths: &term,
	}
}

func call(t *testing.T, config TestConfig, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.TenantID != "" {
		req.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, respBody
}

func evaluate(t *testing.T, config TestConfig, app ApplicationRequest) EvaluationResponse {
	t.Helper()

	status, body := call(t, config, http.MethodPost, "/credit/evaluate", app)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}

	var result EvaluationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

func createPolicyRule(t *testing.T, config TestConfig, rule map[string]any) {
	t.Helper()

	status, body := call(t, config, http.MethodPost, "/policy-rules", rule)
	if status != http.StatusCreated {
		t.Fatalf("Expected status 201 creating policy rule, got %d: %s", status, string(body))
	}
	t.Cleanup(func() {
		call(t, config, http.MethodDelete, "/policy-rules/"+rule["id"].(string), nil)
	})
}

func TestHealth(t *testing.T) {
	config := getTestConfig()

	status, body := call(t, config, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}
}

func TestApprovedApplication(t *testing.T) {
	config := getTestConfig()

	result := evaluate(t, config, newApplication(uniqueDocument("10")))

	if !result.Approved || result.Status != "APPROVED" {
		t.Fatalf("Expected approval, got %s (%s: %s)", result.Status, result.RejectionCode, result.Reason)
	}
	if result.Metadata.HardRulesEvaluated != 12 {
		t.Errorf("Expected all 12 hard rule checks to run, got %d", result.Metadata.HardRulesEvaluated)
	}
	if result.ModelVariables == nil {
		t.Error("Expected model variables on an approved application")
	}
}

func TestInvalidApplication(t *testing.T) {
	config := getTestConfig()

	app := newApplication(uniqueDocument("11"))
	months := 12
	app.TenureExtraMonths = &months

	status, body := call(t, config, http.MethodPost, "/credit/evaluate", app)
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", status, string(body))
	}
}

func TestMissingTenant(t *testing.T) {
	config := getTestConfig()
	config.TenantID = ""

	status, _ := call(t, config, http.MethodPost, "/credit/evaluate", newApplication("1"))
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400 without tenant, got %d", status)
	}
}

func TestPolicyRuleRejects(t *testing.T) {
	config := getTestConfig()

	createPolicyRule(t, config, map[string]any{
		"id":            "it-max-amount",
		"name":          "maximum requested amount",
		"expression":    "requested_amount > 100000000.0",
		"rejectionCode": "AMOUNT_ABOVE_POLICY",
		"reason":        "requested amount above the policy ceiling",
		"priority":      1,
	})

	app := newApplication(uniqueDocument("12"))
	app.RequestedAmount = 150_000_000

	result := evaluate(t, config, app)
	if result.Approved || result.RuleID != "it-max-amount" {
		t.Fatalf("Expected rejection by it-max-amount, got %s %s", result.Status, result.RuleID)
	}
	if result.RejectionCode != "AMOUNT_ABOVE_POLICY" {
		t.Errorf("Expected AMOUNT_ABOVE_POLICY, got %s", result.RejectionCode)
	}

	ok := evaluate(t, config, newApplication(uniqueDocument("13")))
	if !ok.Approved {
		t.Errorf("Expected the default amount to pass the policy rule, got %s", ok.RejectionCode)
	}
}

func TestVelocityHistory(t *testing.T) {
	config := getTestConfig()
	document := uniqueDocument("14")

	first := evaluate(t, config, newApplication(document))
	second := evaluate(t, config, newApplication(document))

	if first.Metadata.RecentApplications != 0 {
		t.Errorf("Expected no earlier applications, got %d", first.Metadata.RecentApplications)
	}
	if second.Metadata.RecentApplications != 1 {
		t.Errorf("Expected 1 earlier application, got %d", second.Metadata.RecentApplications)
	}

	status, body := call(t, config, http.MethodGet, "/credit/applications/"+document+"/evaluations", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}

	var history struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("Failed to unmarshal history: %v", err)
	}
	if history.Count != 2 {
		t.Errorf("Expected 2 evaluations in history, got %d", history.Count)
	}

	status, _ = call(t, config, http.MethodGet, "/credit/evaluations/"+second.EvaluationID, nil)
	if status != http.StatusOK {
		t.Errorf("Expected stored evaluation, got status %d", status)
	}
}

func TestAsyncSubmission(t *testing.T) {
	config := getTestConfig()
	document := uniqueDocument("15")

	status, body := call(t, config, http.MethodPost, "/credit/applications", newApplication(document))
	if status != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", status, string(body))
	}

	// The worker stores the evaluation once it has consumed the application.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		_, body := call(t, config, http.MethodGet, "/credit/applications/"+document+"/evaluations", nil)
		var history struct {
			Count int `json:"count"`
		}
		if json.Unmarshal(body, &history) == nil && history.Count == 1 {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatal("Queued application was never evaluated; is the worker running for integration-tenant?")
}
