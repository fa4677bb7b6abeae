package models

import "time"

// ModuleType classifies a playbook module.
type ModuleType string

const (
	ModulePrinciple ModuleType = "principle"
	ModuleMistake   ModuleType = "mistake"
	ModulePattern   ModuleType = "pattern"
	ModuleProtocol  ModuleType = "protocol"
)

// ModuleTypes lists the four module kinds in display order.
var ModuleTypes = []ModuleType{ModulePrinciple, ModuleMistake, ModulePattern, ModuleProtocol}

// VisualAid hints how a module should be rendered.
type VisualAid string

const (
	VisualBar     VisualAid = "bar"
	VisualList    VisualAid = "list"
	VisualWarning VisualAid = "warning"
)

// PlaybookModule is one section of a synthesized playbook.
type PlaybookModule struct {
	Type      ModuleType
	Title     string
	Content   string
	VisualAid VisualAid
}

// Playbook is a personalized rule set synthesized from trade history.
// A valid playbook has exactly one module of each type.
type Playbook struct {
	ID          string
	Title       string
	Summary     string
	GeneratedAt time.Time
	TradeCount  int
	Modules     []PlaybookModule
}

// LessonCategory classifies a generated lesson.
type LessonCategory string

const (
	LessonRisk       LessonCategory = "Risk"
	LessonPsychology LessonCategory = "Psychology"
	LessonTechnical  LessonCategory = "Technical"
)

// Lesson is a short teaching drawn from the trader's own history.
type Lesson struct {
	ID               string
	Title            string
	Content          string
	Category         LessonCategory
	RelevantTradeIDs []string
	CreatedAt        time.Time
}
