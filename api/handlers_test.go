package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/warp/schedule-guard/engine"
	"github.com/warp/schedule-guard/engine/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mem := store.NewMemory()
	rules := engine.NewRuleEngine()
	log := zerolog.Nop()
	service := engine.NewScheduleService(mem, rules, log)
	materializer := engine.NewMaterializationService(mem, rules, engine.NewDeviationApplicator(mem), log)

	srv := httptest.NewServer(NewRouter(NewHandler(mem, service, materializer)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp
}

func createSchedule(t *testing.T, srv *httptest.Server, name, ruleType, config string) ScheduleDTO {
	t.Helper()

	var dto ScheduleDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules", CreateScheduleRequest{
		Name:       name,
		RuleType:   ruleType,
		RuleConfig: config,
	}, &dto)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating %s: status %d", name, resp.StatusCode)
	}
	return dto
}

func TestCreateAndGetSchedule(t *testing.T) {
	srv := newTestServer(t)

	created := createSchedule(t, srv, "payroll-ach", "WEEKDAYS_ONLY", "")
	if created.Name != "payroll-ach" || created.RuleType != "WEEKDAYS_ONLY" {
		t.Errorf("unexpected create response: %+v", created)
	}

	var fetched ScheduleDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/schedules/"+created.ID, nil, &fetched)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	if fetched.ID != created.ID || fetched.RuleType != "WEEKDAYS_ONLY" {
		t.Errorf("unexpected get response: %+v", fetched)
	}

	var list []ScheduleDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules", nil, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("list: status %d, %d schedules", resp.StatusCode, len(list))
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	srv := newTestServer(t)

	// Missing rule type.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules",
		CreateScheduleRequest{Name: "incomplete"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing rule_type: expected 400, got %d", resp.StatusCode)
	}

	// Malformed cron config.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/schedules",
		CreateScheduleRequest{Name: "bad-cron", RuleType: "CRON_EXPRESSION", RuleConfig: "nope"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad config: expected 400, got %d", resp.StatusCode)
	}

	// Duplicate name conflicts.
	createSchedule(t, srv, "taken", "ALL_DAYS", "")
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/schedules",
		CreateScheduleRequest{Name: "taken", RuleType: "ALL_DAYS"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate name: expected 409, got %d", resp.StatusCode)
	}
}

func TestShouldRunEndpoint(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "weekday-batch", "WEEKDAYS_ONLY", "")

	var monday ShouldRunDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/should-run",
		ShouldRunRequest{Date: "2025-01-06"}, &monday)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !monday.ShouldRun || monday.DeviationApplied {
		t.Errorf("Monday: %+v", monday)
	}

	var saturday ShouldRunDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/should-run",
		ShouldRunRequest{Date: "2025-01-11"}, &saturday)
	if saturday.ShouldRun {
		t.Errorf("Saturday: %+v", saturday)
	}

	// Both queries are in the audit trail, newest first.
	var log []QueryLogDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules/"+schedule.ID+"/query-log", nil, &log)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query-log status %d", resp.StatusCode)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(log))
	}
	if log[0].QueryDate != "2025-01-11" || log[1].QueryDate != "2025-01-06" {
		t.Errorf("log order wrong: %+v", log)
	}
}

func TestDeviationFlow(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "overridable", "WEEKDAYS_ONLY", "")

	var dev DeviationDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/deviations",
		AddDeviationRequest{Date: "2025-01-06", Action: "FORCE_SKIP", Reason: "maintenance"}, &dev)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add deviation: status %d", resp.StatusCode)
	}
	if dev.Action != "FORCE_SKIP" || dev.Date != "2025-01-06" {
		t.Errorf("unexpected deviation: %+v", dev)
	}

	// The override now governs the query and surfaces its reason.
	var answer ShouldRunDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/should-run",
		ShouldRunRequest{Date: "2025-01-06"}, &answer)
	if answer.ShouldRun || !answer.DeviationApplied || answer.Reason != "maintenance" {
		t.Errorf("override not applied: %+v", answer)
	}

	var list []DeviationDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules/"+schedule.ID+"/deviations", nil, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("list deviations: status %d, %d entries", resp.StatusCode, len(list))
	}

	// Unknown actions are rejected.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/deviations",
		AddDeviationRequest{Date: "2025-01-07", Action: "MAYBE"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad action: expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateRuleOpensVersion(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "evolving", "WEEKDAYS_ONLY", "")

	var version VersionDTO
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/schedules/"+schedule.ID+"/rule",
		UpdateRuleRequest{RuleType: "CRON_EXPRESSION", RuleConfig: "0 0 6 * * MON-FRI"}, &version)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update rule: status %d", resp.StatusCode)
	}
	if !version.Active {
		t.Error("new version should be active")
	}

	var versions []VersionDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules/"+schedule.ID+"/versions", nil, &versions)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("versions: status %d", resp.StatusCode)
	}
	if len(versions) != 2 {
		t.Errorf("expected 2 versions, got %d", len(versions))
	}
}

func TestUpdateScheduleMetadataEndpoint(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "editable", "WEEKDAYS_ONLY", "")
	createSchedule(t, srv, "occupied", "ALL_DAYS", "")

	description := "quarterly close batch"
	active := false
	var updated ScheduleDTO
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/schedules/"+schedule.ID,
		UpdateScheduleRequest{Description: &description, Active: &active}, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update schedule: status %d", resp.StatusCode)
	}
	if updated.Description != description || updated.Active {
		t.Errorf("metadata not applied: %+v", updated)
	}
	if updated.Name != "editable" || updated.RuleType != "WEEKDAYS_ONLY" {
		t.Errorf("untouched fields must survive: %+v", updated)
	}

	var fetched ScheduleDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules/"+schedule.ID, nil, &fetched)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	if fetched.Description != description || fetched.Active {
		t.Errorf("metadata not persisted: %+v", fetched)
	}

	// Renaming onto an existing name conflicts.
	clash := "occupied"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/schedules/"+schedule.ID,
		UpdateScheduleRequest{Name: &clash}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("rename onto a taken name: expected 409, got %d", resp.StatusCode)
	}

	// An explicitly empty name is rejected.
	empty := ""
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/schedules/"+schedule.ID,
		UpdateScheduleRequest{Name: &empty}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", resp.StatusCode)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "viewable", "WEEKDAYS_ONLY", "")

	var days []CalendarDayDTO
	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/schedules/"+schedule.ID+"/calendar?year=2025&month=1", nil, &days)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("calendar: status %d", resp.StatusCode)
	}
	if len(days) != 31 {
		t.Fatalf("January has 31 days, got %d", len(days))
	}
	if days[0].Date != "2025-01-01" || days[30].Date != "2025-01-31" {
		t.Errorf("unexpected range: %s .. %s", days[0].Date, days[len(days)-1].Date)
	}

	resp = doJSON(t, http.MethodGet,
		srv.URL+"/api/schedules/"+schedule.ID+"/calendar?year=2025&month=13", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("month 13: expected 400, got %d", resp.StatusCode)
	}
}

func TestMaterializeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	schedule := createSchedule(t, srv, "cacheable", "WEEKDAYS_ONLY", "")

	var result MaterializeResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/materialize",
		MaterializeRequest{From: "2025-01-06", To: "2025-01-12"}, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("materialize: status %d", resp.StatusCode)
	}
	if len(result.Dates) != 5 {
		t.Errorf("expected 5 weekday dates, got %v", result.Dates)
	}
}

func TestUnknownScheduleReturns404(t *testing.T) {
	srv := newTestServer(t)

	missing := engine.NewID().String()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules/"+missing+"/should-run",
		ShouldRunRequest{Date: "2025-01-06"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/schedules/not-a-uuid", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/healthz", nil, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz: status %d, body %v", resp.StatusCode, body)
	}
}
