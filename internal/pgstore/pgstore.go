// Package pgstore implements the metrics and profile stores on Postgres.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"healthadvisor/backend/internal/db"
	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/persona"
)

//go:embed schema.sql
var schemaSQL string

var requiredColumns = []db.Column{
	{Table: "HealthMetric", Column: "userId"},
	{Table: "HealthMetric", Column: "kind"},
	{Table: "HealthMetric", Column: "value"},
	{Table: "HealthMetric", Column: "systolic"},
	{Table: "HealthMetric", Column: "diastolic"},
	{Table: "HealthMetric", Column: "recordedAt"},
	{Table: "MealLog", Column: "items"},
	{Table: "MealLog", Column: "carbG"},
	{Table: "MealLog", Column: "fried"},
	{Table: "MealLog", Column: "eatenAt"},
	{Table: "PersonaPreference", Column: "persona"},
	{Table: "PersonaPreference", Column: "verbosity"},
	{Table: "PersonaPreference", Column: "lowAsk"},
}

func ValidateSchema(ctx context.Context, q db.Querier) error {
	return db.ValidateSchema(ctx, q, requiredColumns)
}

// EnsureSchema creates the tables if they do not exist. Used by the seeder and
// integration tests; production schemas are migrated out of band.
func EnsureSchema(ctx context.Context, q db.Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type MetricsStore struct {
	q db.Querier
}

func NewMetricsStore(q db.Querier) *MetricsStore {
	return &MetricsStore{q: q}
}

func (s *MetricsStore) Recent(ctx context.Context, userID string, kind health.Kind, since time.Time) ([]health.Reading, error) {
	switch kind {
	case health.KindMeal:
		return s.recentMeals(ctx, userID, since)
	case health.KindBloodPressure:
		return s.recentBloodPressure(ctx, userID, since)
	default:
		return s.recentScalar(ctx, userID, kind, since)
	}
}

func (s *MetricsStore) recentScalar(ctx context.Context, userID string, kind health.Kind, since time.Time) ([]health.Reading, error) {
	rows, err := s.q.Query(
		ctx,
		`SELECT "recordedAt", "value"
		 FROM "HealthMetric"
		 WHERE "userId" = $1 AND "kind" = $2 AND "recordedAt" >= $3 AND "value" IS NOT NULL
		 ORDER BY "recordedAt" ASC`,
		userID,
		string(kind),
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s readings: %w", kind, err)
	}
	defer rows.Close()

	var readings []health.Reading
	for rows.Next() {
		var reading health.Reading
		if err := rows.Scan(&reading.At, &reading.Value); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func (s *MetricsStore) recentBloodPressure(ctx context.Context, userID string, since time.Time) ([]health.Reading, error) {
	rows, err := s.q.Query(
		ctx,
		`SELECT "recordedAt", "systolic", "diastolic"
		 FROM "HealthMetric"
		 WHERE "userId" = $1 AND "kind" = $2 AND "recordedAt" >= $3
		   AND "systolic" IS NOT NULL AND "diastolic" IS NOT NULL
		 ORDER BY "recordedAt" ASC`,
		userID,
		string(health.KindBloodPressure),
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query blood pressure readings: %w", err)
	}
	defer rows.Close()

	var readings []health.Reading
	for rows.Next() {
		var reading health.Reading
		if err := rows.Scan(&reading.At, &reading.Systolic, &reading.Diastolic); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func (s *MetricsStore) recentMeals(ctx context.Context, userID string, since time.Time) ([]health.Reading, error) {
	rows, err := s.q.Query(
		ctx,
		`SELECT "eatenAt", "description", "items", "carbG", "proteinG", "fatG", "kcal", "fried"
		 FROM "MealLog"
		 WHERE "userId" = $1 AND "eatenAt" >= $2
		 ORDER BY "eatenAt" ASC`,
		userID,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query meal logs: %w", err)
	}
	defer rows.Close()

	var readings []health.Reading
	for rows.Next() {
		var (
			at   time.Time
			meal health.Meal
		)
		if err := rows.Scan(&at, &meal.Description, &meal.Items, &meal.CarbG, &meal.ProteinG, &meal.FatG, &meal.Kcal, &meal.Fried); err != nil {
			return nil, err
		}
		readings = append(readings, health.Reading{At: at, Meal: &meal})
	}
	return readings, rows.Err()
}

// Insert stores one reading. Meal readings go to the meal log.
func (s *MetricsStore) Insert(ctx context.Context, userID string, kind health.Kind, reading health.Reading) error {
	if kind == health.KindMeal {
		if reading.Meal == nil {
			return errors.New("meal reading without meal")
		}
		meal := reading.Meal
		items := meal.Items
		if items == nil {
			items = []string{}
		}
		_, err := s.q.Exec(
			ctx,
			`INSERT INTO "MealLog" ("id", "userId", "description", "items", "carbG", "proteinG", "fatG", "kcal", "fried", "eatenAt")
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.NewString(), userID, meal.Description, items, meal.CarbG, meal.ProteinG, meal.FatG, meal.Kcal, meal.Fried, reading.At,
		)
		return err
	}

	var value, systolic, diastolic *float64
	if kind == health.KindBloodPressure {
		systolic, diastolic = &reading.Systolic, &reading.Diastolic
	} else {
		value = &reading.Value
	}
	_, err := s.q.Exec(
		ctx,
		`INSERT INTO "HealthMetric" ("id", "userId", "kind", "value", "systolic", "diastolic", "recordedAt")
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), userID, string(kind), value, systolic, diastolic, reading.At,
	)
	return err
}

type ProfileStore struct {
	q db.Querier
}

func NewProfileStore(q db.Querier) *ProfileStore {
	return &ProfileStore{q: q}
}

func (s *ProfileStore) PersonaPrefs(ctx context.Context, userID string) (persona.Prefs, error) {
	var (
		name, verbosity string
		lowAsk          bool
	)
	err := s.q.QueryRow(
		ctx,
		`SELECT "persona", "verbosity", "lowAsk" FROM "PersonaPreference" WHERE "userId" = $1`,
		userID,
	).Scan(&name, &verbosity, &lowAsk)
	if errors.Is(err, pgx.ErrNoRows) {
		return persona.Defaults(), nil
	}
	if err != nil {
		return persona.Prefs{}, err
	}
	return persona.Normalize(persona.Prefs{
		Persona:   persona.Persona(name),
		Verbosity: persona.Verbosity(verbosity),
		LowAsk:    lowAsk,
	}), nil
}

func (s *ProfileStore) SavePersonaPrefs(ctx context.Context, userID string, prefs persona.Prefs) error {
	prefs = persona.Normalize(prefs)
	_, err := s.q.Exec(
		ctx,
		`INSERT INTO "PersonaPreference" ("userId", "persona", "verbosity", "lowAsk", "updatedAt")
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT ("userId") DO UPDATE
		 SET "persona" = EXCLUDED."persona",
		     "verbosity" = EXCLUDED."verbosity",
		     "lowAsk" = EXCLUDED."lowAsk",
		     "updatedAt" = NOW()`,
		userID,
		string(prefs.Persona),
		string(prefs.Verbosity),
		prefs.LowAsk,
	)
	return err
}
