// Package dataset loads the student depression survey and turns it into the
// feature frame and label vector used for training.
package dataset

// Source column names.
const (
	ColAcademicPressure = "Academic Pressure"
	ColWorkStudyHours   = "Work/Study Hours"
	ColFinancialStress  = "Financial Stress"
	ColDietaryHabits    = "Dietary Habits"
	ColSleepDuration    = "Sleep Duration"
	ColFamilyHistory    = "Family History of Mental Illness"
	ColSuicidalThoughts = "Have you ever had suicidal thoughts ?"
	ColCGPA             = "CGPA"
	ColGender           = "Gender"
	ColLabel            = "Depression"
)

// DroppedColumns are removed before anything else. Absent names are ignored.
var DroppedColumns = []string{"Work Pressure", "Job Satisfaction", "Degree", "City"}

// FeatureColumns is the fixed feature order shared by training and inference.
var FeatureColumns = []string{
	ColAcademicPressure,
	ColWorkStudyHours,
	ColFinancialStress,
	ColDietaryHabits,
	ColSleepDuration,
	ColFamilyHistory,
	ColSuicidalThoughts,
	ColCGPA,
	ColGender,
}

// ContinuousColumns feed the scaler and PCA branch.
var ContinuousColumns = []string{
	ColAcademicPressure,
	ColWorkStudyHours,
	ColFinancialStress,
	ColSleepDuration,
	ColCGPA,
}

// CategoricalColumns feed the one-hot branch.
var CategoricalColumns = []string{
	ColDietaryHabits,
	ColFamilyHistory,
	ColSuicidalThoughts,
	ColGender,
}

// ImputedColumns are median-filled after mapping.
var ImputedColumns = []string{ColFinancialStress, ColSleepDuration}

// NumericSourceColumns are parsed as numbers on load. Everything else is text.
var NumericSourceColumns = map[string]bool{
	"id":                 true,
	"Age":                true,
	ColAcademicPressure:  true,
	"Work Pressure":      true,
	ColCGPA:              true,
	"Study Satisfaction": true,
	"Job Satisfaction":   true,
	ColWorkStudyHours:    true,
	ColFinancialStress:   true,
	ColLabel:             true,
}

// IsNumericFeature reports whether a prepared feature column holds numbers.
// Dietary Habits and Gender stay text.
func IsNumericFeature(name string) bool {
	return name != ColDietaryHabits && name != ColGender
}
