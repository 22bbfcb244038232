package fhirstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"healthadvisor/backend/internal/health"
)

const bpBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {
      "resourceType": "Observation", "status": "final",
      "effectiveDateTime": "2026-03-09T08:00:00Z",
      "component": [
        {"code": {"coding": [{"system": "http://loinc.org", "code": "8480-6"}]}, "valueQuantity": {"value": 135, "unit": "mmHg"}},
        {"code": {"coding": [{"system": "http://loinc.org", "code": "8462-4"}]}, "valueQuantity": {"value": 85, "unit": "mmHg"}}
      ]}},
    {"resource": {
      "resourceType": "Observation", "status": "entered-in-error",
      "effectiveDateTime": "2026-03-09T09:00:00Z",
      "component": []}},
    {"resource": {
      "resourceType": "Observation", "status": "final",
      "effectiveDateTime": "2026-03-09T10:00:00Z",
      "component": [
        {"code": {"coding": [{"code": "8480-6"}]}, "valueQuantity": {"value": 140}}
      ]}}
  ]
}`

func TestParseBundleBloodPressure(t *testing.T) {
	readings := ParseBundle([]byte(bpBundle), health.KindBloodPressure)
	if len(readings) != 1 {
		t.Fatalf("expected one complete reading, got %+v", readings)
	}
	if readings[0].Systolic != 135 || readings[0].Diastolic != 85 {
		t.Fatalf("unexpected reading %+v", readings[0])
	}
	if !readings[0].At.Equal(time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", readings[0].At)
	}
}

func TestParseBundleConvertsMmolGlucose(t *testing.T) {
	body := `{"entry":[
	  {"resource":{"resourceType":"Observation","status":"final","effectiveDateTime":"2026-03-09T08:00:00+07:00","valueQuantity":{"value":7,"unit":"mmol/L"}}},
	  {"resource":{"resourceType":"Observation","status":"final","effectiveDateTime":"2026-03-09T12:00:00Z","valueQuantity":{"value":150,"unit":"mg/dL"}}},
	  {"resource":{"resourceType":"Observation","status":"final","valueQuantity":{"value":99}}}
	]}`
	readings := ParseBundle([]byte(body), health.KindGlucose)
	if len(readings) != 2 {
		t.Fatalf("expected readings without time to be skipped, got %+v", readings)
	}
	if readings[0].Value != 126 || readings[1].Value != 150 {
		t.Fatalf("unexpected values %+v", readings)
	}
}

func TestStoreSearchesObservations(t *testing.T) {
	var gotPath, gotCode, gotSubject string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCode = r.URL.Query().Get("code")
		gotSubject = r.URL.Query().Get("subject")
		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write([]byte(bpBundle))
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := New(ctx, "projects/p/locations/l/datasets/d/fhirStores/s",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	readings, err := store.Recent(ctx, "user-1", health.KindBloodPressure, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("expected one reading, got %d", len(readings))
	}
	if !strings.HasSuffix(gotPath, "/fhirStores/s/fhir/Observation/_search") {
		t.Fatalf("unexpected search path %q", gotPath)
	}
	if gotCode != "http://loinc.org|85354-9" || gotSubject != "Patient/user-1" {
		t.Fatalf("unexpected search params code=%q subject=%q", gotCode, gotSubject)
	}
}

func TestStoreSkipsMealsAndSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"issue":[{"severity":"error"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := New(ctx, "projects/p/locations/l/datasets/d/fhirStores/s",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if readings, err := store.Recent(ctx, "user-1", health.KindMeal, time.Now()); err != nil || readings != nil {
		t.Fatalf("expected meals to be skipped, got %v err=%v", readings, err)
	}
	if _, err := store.Recent(ctx, "user-1", health.KindGlucose, time.Now()); err == nil {
		t.Fatalf("expected forbidden response to surface as an error")
	}
	if _, err := New(ctx, " ", option.WithoutAuthentication()); err == nil {
		t.Fatalf("expected empty store name to be rejected")
	}
}
