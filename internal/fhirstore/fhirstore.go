// Package fhirstore reads health metrics from a Cloud Healthcare FHIR store,
// where each reading is a FHIR Observation whose subject is Patient/{userID}.
package fhirstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"google.golang.org/api/googleapi"
	healthcare "google.golang.org/api/healthcare/v1"
	"google.golang.org/api/option"

	"healthadvisor/backend/internal/health"
)

const (
	loincSystem   = "http://loinc.org"
	localSystem   = "urn:healthadvisor:metric"
	pageSize      = "500"
	mmolToMgdl    = 18.0
	codeSystolic  = "8480-6"
	codeDiastolic = "8462-4"
)

// Observation codes per metric. Meals are not Observations and are not read
// from FHIR.
var observationCodes = map[health.Kind]string{
	health.KindGlucose:       loincSystem + "|2339-0",
	health.KindBloodPressure: loincSystem + "|85354-9",
	health.KindWeight:        loincSystem + "|29463-7",
	health.KindWater:         localSystem + "|water-intake",
}

type Store struct {
	fhir   *healthcare.ProjectsLocationsDatasetsFhirStoresFhirService
	parent string
}

// New connects to the FHIR store named
// projects/{p}/locations/{l}/datasets/{d}/fhirStores/{s}.
func New(ctx context.Context, fhirStore string, opts ...option.ClientOption) (*Store, error) {
	parent := strings.Trim(strings.TrimSpace(fhirStore), "/")
	if parent == "" {
		return nil, fmt.Errorf("fhir store name is required")
	}
	svc, err := healthcare.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create healthcare client: %w", err)
	}
	return &Store{fhir: svc.Projects.Locations.Datasets.FhirStores.Fhir, parent: parent}, nil
}

func (s *Store) Recent(ctx context.Context, userID string, kind health.Kind, since time.Time) ([]health.Reading, error) {
	code, ok := observationCodes[kind]
	if !ok {
		return nil, nil
	}
	resp, err := s.fhir.SearchType(s.parent, "Observation", &healthcare.SearchResourcesRequest{ResourceType: "Observation"}).
		Context(ctx).
		Do(
			googleapi.QueryParameter("subject", "Patient/"+userID),
			googleapi.QueryParameter("code", code),
			googleapi.QueryParameter("date", "ge"+since.UTC().Format(time.RFC3339)),
			googleapi.QueryParameter("_sort", "date"),
			googleapi.QueryParameter("_count", pageSize),
		)
	if err != nil {
		return nil, fmt.Errorf("search %s observations: %w", kind, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("search %s observations: status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ParseBundle(body, kind), nil
}

// ParseBundle converts a FHIR searchset Bundle into readings. Entries without
// a usable time or value are skipped.
func ParseBundle(body []byte, kind health.Kind) []health.Reading {
	var readings []health.Reading
	gjson.GetBytes(body, "entry.#.resource").ForEach(func(_, resource gjson.Result) bool {
		if resource.Get("resourceType").String() != "Observation" {
			return true
		}
		if status := resource.Get("status").String(); status == "entered-in-error" || status == "cancelled" {
			return true
		}
		at, ok := effectiveTime(resource)
		if !ok {
			return true
		}
		reading := health.Reading{At: at}
		if kind == health.KindBloodPressure {
			reading.Systolic, ok = componentValue(resource, codeSystolic)
			if !ok {
				return true
			}
			reading.Diastolic, ok = componentValue(resource, codeDiastolic)
			if !ok {
				return true
			}
		} else {
			quantity := resource.Get("valueQuantity")
			if !quantity.Get("value").Exists() {
				return true
			}
			reading.Value = quantity.Get("value").Float()
			if kind == health.KindGlucose && strings.HasPrefix(strings.ToLower(quantity.Get("unit").String()), "mmol") {
				reading.Value *= mmolToMgdl
			}
		}
		readings = append(readings, reading)
		return true
	})
	return readings
}

func effectiveTime(resource gjson.Result) (time.Time, bool) {
	raw := resource.Get("effectiveDateTime").String()
	if raw == "" {
		raw = resource.Get("effectiveInstant").String()
	}
	if raw == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func componentValue(resource gjson.Result, loincCode string) (float64, bool) {
	var (
		value float64
		found bool
	)
	resource.Get("component").ForEach(func(_, component gjson.Result) bool {
		component.Get("code.coding").ForEach(func(_, coding gjson.Result) bool {
			if coding.Get("code").String() == loincCode {
				found = component.Get("valueQuantity.value").Exists()
				value = component.Get("valueQuantity.value").Float()
			}
			return !found
		})
		return !found
	})
	return value, found
}
