package models

import (
	"strings"
	"time"
)

// SchemaVersion is the canonical survey schema stored in table survey_v2.
const SchemaVersion = 2

// ObstacleSeparator joins obstacle labels in the survey_v2.obstacles text column.
const ObstacleSeparator = ","

// DefaultObstacles are the labels offered on the form. Clients may submit other labels.
var DefaultObstacles = []string{
	"Time",
	"Cost",
	"Skills gap",
	"Tooling",
	"Management support",
	"Job security",
}

// SurveyResponse is one respondent's submitted answer set. Records are append-only.
type SurveyResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Department    string    `json:"department"`
	Age           int       `json:"age"`
	FutureState   string    `json:"future_state"`
	EmotionImpact string    `json:"emotion_impact"`
	Obstacles     []string  `json:"obstacles"`
	ObstaclesText string    `json:"obstacles_text"`
	Solution      string    `json:"solution"`
	HelpChannel   string    `json:"help_channel"`
	Avoid         string    `json:"avoid"`
	Prefer        string    `json:"prefer"`
	CreatedAt     time.Time `json:"created_at"`
}

// JoinObstacles returns the stored text form of labels.
func JoinObstacles(labels []string) string {
	return strings.Join(labels, ObstacleSeparator)
}

// SplitObstacles reverses JoinObstacles. Labels containing the separator do not round-trip;
// SurveyResponse.Obstacles read from the store is exact.
func SplitObstacles(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, ObstacleSeparator)
}

// DepartmentCount is one row of the per-department breakdown.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}
