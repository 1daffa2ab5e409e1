package schema

import "github.com/vitebski/petsync/pkg/models"

// Identifier is the primary key of the listing tables
const Identifier = "animalID"

const (
	integer     = models.TypeInteger
	float       = models.TypeFloat
	boolean     = models.TypeTriBool
	category    = models.TypeCategory
	text        = models.TypeString
	date        = models.TypeDate
	epochDate   = models.TypeEpochDate
	numericText = models.TypeNumericText
)

// petColumns lists the shelter feed in source position order
var petColumns = []struct {
	name string
	typ  models.SemanticType
}{
	{"orgID", integer},
	{"animalID", integer},
	{"status", category},
	{"lastUpdated", integer},
	{"name", text},
	{"summary", text},
	{"rescueID", text},
	{"species", category},
	{"primaryBreed", category},
	{"secondaryBreed", category},
	{"sex", category},
	{"generalAge", category},
	{"mixed", boolean},
	{"altered", boolean},
	{"declawed", boolean},
	{"specialNeeds", boolean},
	{"housetrained", boolean},
	{"courtesy", boolean},
	{"generalSizePotential", category},
	{"birthdate", date},
	{"birthdateExact", boolean},
	{"needsFoster", boolean},
	{"color", category},
	{"adoptionFee", float},
	{"sizeCurrent", float},
	{"sizeUOM", category},
	{"ongoingMedical", boolean},
	{"activityLevel", category},
	{"energyLevel", category},
	{"exerciseNeeds", category},
	{"hypoallergenic", boolean},
	{"noHeat", boolean},
	{"availableDate", date},
	{"coatLength", category},
	{"specialNeedsDescription", text},
	{"createdDate", epochDate},
	{"eyeColor", category},
	{"description", text},
	{"videoUrls", text},
	{"url", text},
	{"currentWeight", numericText},
	{"groomingNeeds", category},
	{"sheddingAmount", category},
	{"newPeopleReaction", category},
	{"vocalLevel", category},
	{"earType", category},
	{"tailType", category},
	{"coatPattern", category},
	{"fenceNeeded", category},
	{"ownerExperience", category},
	{"indoorOutdoor", category},
	{"affectionLevel", category},
	{"playfulness", category},
	{"timidness", category},
	{"independence", category},
	{"intelligence", category},
	{"okWithDogs", boolean},
	{"okWithCats", boolean},
	{"okWithKids", boolean},
	{"okWithAdults", boolean},
	{"okWithFarmAnimals", boolean},
	{"okWithSeniors", boolean},
	{"olderKidsOnly", boolean},
	{"noSmallDogs", boolean},
	{"noLargeDogs", boolean},
	{"noFemaleDogs", boolean},
	{"noMaleDogs", boolean},
	{"apartmentOk", boolean},
	{"yardRequired", boolean},
	{"leashTrained", boolean},
	{"crateTrained", boolean},
	{"goodInCar", boolean},
	{"escapes", boolean},
	{"predatory", boolean},
	{"gentle", boolean},
	{"goofy", boolean},
	{"protective", boolean},
	{"playsToys", boolean},
	{"likesToFetch", boolean},
	{"likesSwimming", boolean},
	{"lap", boolean},
	{"eagerToPlease", boolean},
	{"evenTempered", boolean},
	{"hearingImpaired", boolean},
	{"sightImpaired", boolean},
	{"obedient", boolean},
	{"skittish", boolean},
	{"drools", boolean},
	{"hasAllergies", boolean},
	{"needsCompanion", boolean},
	{"noDogs", boolean},
	{"noCats", boolean},
	{"noKids", boolean},
	{"hasSpecialDiet", boolean},
	{"pictures", text},
	{"videos", text},
	{"contactName", text},
	{"modifiedTimestamp", integer},
	{"locationAddress", text},
	{"locationCity", text},
	{"locationState", text},
	{"locationPostalcode", text},
	{"locationPhone", text},
	{"featured", boolean},
	{"sponsorable", boolean},
}

// longTextColumns need unbounded text storage at the destination
var longTextColumns = map[string]bool{
	"description": true,
	"pictures":    true,
}

// Pets returns the fixed column schema of the shelter listing feed
func Pets() *Schema {
	columns := make([]models.ColumnSpec, len(petColumns))
	for i, c := range petColumns {
		policy := models.StoreDirect
		if c.typ == models.TypeCategory {
			policy = models.NormalizeAboveThreshold
		}
		columns[i] = models.ColumnSpec{
			Position:    i,
			Name:        c.name,
			Type:        c.typ,
			Cardinality: policy,
			LongText:    longTextColumns[c.name],
		}
	}

	s, err := New(Identifier, columns)
	if err != nil {
		panic(err)
	}
	return s
}
