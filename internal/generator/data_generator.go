package generator

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/ingest"
	"github.com/vitebski/petsync/internal/schema"
	"github.com/vitebski/petsync/pkg/models"
)

// categoryPools holds realistic values for categorical columns; columns
// without a pool draw from defaultPool
var categoryPools = map[string][]string{
	"status":               {"Available", "Adopted", "Pending"},
	"species":              {"Dog", "Cat", "Rabbit", "Bird", "Guinea Pig", "Horse", "Reptile"},
	"primaryBreed":         {"Labrador Retriever", "Pit Bull Terrier", "Domestic Short Hair", "Beagle", "Chihuahua", "German Shepherd Dog", "Siamese", "Lop Eared", "Boxer", "Dachshund"},
	"secondaryBreed":       {"", "Mixed Breed", "Terrier", "Hound", "Shepherd", "Tabby", "Poodle"},
	"sex":                  {"Male", "Female"},
	"generalAge":           {"Baby", "Young", "Adult", "Senior"},
	"generalSizePotential": {"Small", "Medium", "Large", "X-Large"},
	"color":                {"Black", "White", "Brown", "Tan", "Brindle", "Gray", "Orange", "Calico", "Tricolor"},
	"sizeUOM":              {"Pounds", "Kilograms"},
	"activityLevel":        {"Not Active", "Slightly Active", "Moderately Active", "Highly Active"},
	"coatLength":           {"Short", "Medium", "Long"},
	"eyeColor":             {"Brown", "Blue", "Green", "Amber", "Hazel", "Gold", "Mixed"},
	"newPeopleReaction":    {"Cautious", "Friendly", "Protective", "Aggressive"},
	"earType":              {"Droopy", "Erect", "Cropped", "Tipped", "Rose", "Button"},
	"tailType":             {"Long", "Short", "Bob", "Curled", "Docked", "Kinked"},
	"indoorOutdoor":        {"Indoor Only", "Indoor and Outdoor", "Outdoor Only"},
}

var defaultPool = []string{"", "Low", "Moderate", "High"}

// RecordGenerator produces synthetic listings shaped like the feed export
type RecordGenerator struct {
	Faker  faker.Faker
	Schema *schema.Schema
	Logger *logrus.Logger
	now    time.Time
}

// NewRecordGenerator creates a generator; equal seeds give equal output
func NewRecordGenerator(s *schema.Schema, seed int64, logger *logrus.Logger) *RecordGenerator {
	return &RecordGenerator{
		Faker:  faker.NewWithSeed(rand.NewSource(seed)),
		Schema: s,
		Logger: logger,
		now:    time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Listing generates one complete record for the given identifier
func (g *RecordGenerator) Listing(id int64) models.RawRecord {
	rec := models.NewRawRecord()
	for _, col := range g.Schema.Columns {
		if col.Name == g.Schema.Identifier {
			rec.Set(col.Name, strconv.FormatInt(id, 10))
			continue
		}
		rec.Set(col.Name, g.value(col))
	}
	return rec
}

// Placeholder generates a record whose identifier is not numeric, the way
// image rows leak into the feed
func (g *RecordGenerator) Placeholder() models.RawRecord {
	rec := g.Listing(0)
	rec.Set(g.Schema.Identifier, fmt.Sprintf("<img src=\"%s\">", g.Faker.Internet().URL()))
	return rec
}

// Batch generates n listings with consecutive identifiers from firstID,
// with corrupt placeholder records spread through it
func (g *RecordGenerator) Batch(firstID int64, n, corrupt int) []models.RawRecord {
	records := make([]models.RawRecord, 0, n+corrupt)
	for i := 0; i < n; i++ {
		records = append(records, g.Listing(firstID+int64(i)))
	}
	for i := 0; i < corrupt; i++ {
		at := g.Faker.IntBetween(0, len(records))
		records = append(records, models.RawRecord{})
		copy(records[at+1:], records[at:])
		records[at] = g.Placeholder()
	}
	return records
}

// WriteInbox writes an initial export, a new-listings export and an
// updates export that changes some of the initial listings
func (g *RecordGenerator) WriteInbox(dir string, initial, added, updated int) error {
	const firstID = 1000

	initialRecords := g.Batch(firstID, initial, 2)
	if err := ingest.WriteArchive(filepath.Join(dir, ingest.InitialPrefix+"1.zip"), "pets_1.json", initialRecords); err != nil {
		return err
	}

	newRecords := g.Batch(firstID+int64(initial), added, 1)
	if err := ingest.WriteArchive(filepath.Join(dir, ingest.NewPrefix+"pets.zip"), "newpets.json", newRecords); err != nil {
		return err
	}

	if updated > initial {
		updated = initial
	}
	updatedRecords := make([]models.RawRecord, 0, updated)
	for i := 0; i < updated; i++ {
		updatedRecords = append(updatedRecords, g.Listing(firstID+int64(i)))
	}
	if err := ingest.WriteArchive(filepath.Join(dir, ingest.UpdatedPrefix+"pets.zip"), "updatedpets.json", updatedRecords); err != nil {
		return err
	}

	g.Logger.Infof("Wrote %d initial, %d new and %d updated listing(s) to %s", initial, added, updated, dir)
	return nil
}

func (g *RecordGenerator) value(col models.ColumnSpec) interface{} {
	switch col.Type {
	case models.TypeInteger:
		if strings.Contains(strings.ToLower(col.Name), "org") {
			return strconv.Itoa(g.Faker.IntBetween(1, 9999))
		}
		return strconv.FormatInt(g.timestamp().Unix(), 10)
	case models.TypeFloat:
		if g.Faker.IntBetween(0, 3) == 0 {
			return ""
		}
		return fmt.Sprintf("%d.%02d", g.Faker.IntBetween(0, 400), g.Faker.IntBetween(0, 99))
	case models.TypeTriBool:
		return g.Faker.RandomStringElement([]string{"Yes", "No", ""})
	case models.TypeDate:
		if g.Faker.IntBetween(0, 4) == 0 {
			return ""
		}
		return g.timestamp().Format("2006-01-02")
	case models.TypeEpochDate:
		return strconv.FormatInt(g.timestamp().Unix(), 10)
	case models.TypeNumericText:
		return fmt.Sprintf("%d %s", g.Faker.IntBetween(1, 120), g.Faker.RandomStringElement([]string{"lbs", "pounds", "kg"}))
	case models.TypeCategory:
		pool, ok := categoryPools[col.Name]
		if !ok {
			pool = defaultPool
		}
		return g.Faker.RandomStringElement(pool)
	default:
		return g.text(col.Name)
	}
}

func (g *RecordGenerator) timestamp() time.Time {
	days := g.Faker.IntBetween(0, 3650)
	seconds := g.Faker.IntBetween(0, 86399)
	return g.now.Add(-time.Duration(days)*24*time.Hour - time.Duration(seconds)*time.Second)
}

func (g *RecordGenerator) text(column string) string {
	name := strings.ToLower(column)
	switch {
	case name == "description":
		return "<p>" + g.Faker.Lorem().Paragraph(3) + "</p>"
	case name == "pictures" || name == "videos" || name == "videourls":
		urls := make([]string, g.Faker.IntBetween(0, 4))
		for i := range urls {
			urls[i] = g.Faker.Internet().URL()
		}
		return strings.Join(urls, ",")
	case strings.Contains(name, "url"):
		return g.Faker.Internet().URL()
	case strings.Contains(name, "city"):
		return g.Faker.Address().City()
	case strings.Contains(name, "state"):
		return g.Faker.Address().State()
	case strings.Contains(name, "postal"):
		return g.Faker.Address().PostCode()
	case strings.Contains(name, "address"):
		return g.Faker.Address().StreetAddress()
	case strings.Contains(name, "phone"):
		return g.Faker.Phone().Number()
	case strings.Contains(name, "name"):
		return g.Faker.Person().Name()
	case strings.Contains(name, "id"):
		return g.Faker.RandomStringWithLength(8)
	default:
		return g.Faker.Lorem().Sentence(6)
	}
}
