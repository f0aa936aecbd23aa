// Package domain holds the persisted entities of the tutoring backend and the
// closed vocabularies (diagnoses, disabilities, signal types, content formats)
// shared by the adaptive engine, the services and the HTTP layer.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Diagnosis string

const (
	DiagnosisADHDCombined    Diagnosis = "ADHD_COMBINED"
	DiagnosisADHDInattentive Diagnosis = "ADHD_INATTENTIVE"
	DiagnosisADHDHyperactive Diagnosis = "ADHD_HYPERACTIVE"
	DiagnosisASDL1           Diagnosis = "ASD_L1"
	DiagnosisASDL2           Diagnosis = "ASD_L2"
	DiagnosisASDL3           Diagnosis = "ASD_L3"
	DiagnosisDyslexia        Diagnosis = "DYSLEXIA"
	DiagnosisDyscalculia     Diagnosis = "DYSCALCULIA"
	DiagnosisDyspraxia       Diagnosis = "DYSPRAXIA"
	DiagnosisAnxiety         Diagnosis = "ANXIETY"
	DiagnosisSPD             Diagnosis = "SPD"
)

var knownDiagnoses = map[Diagnosis]bool{
	DiagnosisADHDCombined: true, DiagnosisADHDInattentive: true, DiagnosisADHDHyperactive: true,
	DiagnosisASDL1: true, DiagnosisASDL2: true, DiagnosisASDL3: true,
	DiagnosisDyslexia: true, DiagnosisDyscalculia: true, DiagnosisDyspraxia: true,
	DiagnosisAnxiety: true, DiagnosisSPD: true,
}

func (d Diagnosis) Valid() bool { return knownDiagnoses[d] }

// IsADHD matches every ADHD presentation.
func (d Diagnosis) IsADHD() bool { return strings.HasPrefix(string(d), "ADHD") }

// IsASD matches every autism support level.
func (d Diagnosis) IsASD() bool { return strings.HasPrefix(string(d), "ASD") }

type DisabilityType string

const (
	DisabilityVisual     DisabilityType = "VISUAL_IMPAIRMENT"
	DisabilityHearing    DisabilityType = "HEARING_IMPAIRMENT"
	DisabilityMotor      DisabilityType = "MOTOR_IMPAIRMENT"
	DisabilityCognitive  DisabilityType = "COGNITIVE_DISABILITY"
	DisabilitySpeech     DisabilityType = "SPEECH_IMPAIRMENT"
	DisabilityChronicFat DisabilityType = "CHRONIC_FATIGUE"
)

func (d DisabilityType) Valid() bool {
	switch d {
	case DisabilityVisual, DisabilityHearing, DisabilityMotor, DisabilityCognitive, DisabilitySpeech, DisabilityChronicFat:
		return true
	}
	return false
}

type Modality string

const (
	ModalityVisual      Modality = "VISUAL"
	ModalityAuditory    Modality = "AUDITORY"
	ModalityKinesthetic Modality = "KINESTHETIC"
	ModalityText        Modality = "TEXT"
	ModalityVideo       Modality = "VIDEO"
	ModalityInteractive Modality = "INTERACTIVE"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityVisual, ModalityAuditory, ModalityKinesthetic, ModalityText, ModalityVideo, ModalityInteractive:
		return true
	}
	return false
}

type FormatType string

const (
	FormatExplanation     FormatType = "EXPLANATION"
	FormatStory           FormatType = "STORY"
	FormatQuiz            FormatType = "QUIZ"
	FormatDiagram         FormatType = "DIAGRAM"
	FormatVideoTranscript FormatType = "VIDEO_TRANSCRIPT"
	FormatWorkedExample   FormatType = "WORKED_EXAMPLE"
	FormatAnalogy         FormatType = "ANALOGY"
	FormatExercise        FormatType = "EXERCISE"
)

func (f FormatType) Valid() bool {
	switch f {
	case FormatExplanation, FormatStory, FormatQuiz, FormatDiagram, FormatVideoTranscript,
		FormatWorkedExample, FormatAnalogy, FormatExercise:
		return true
	}
	return false
}

type SignalType string

const (
	SignalKeypressDelay   SignalType = "KEYPRESS_DELAY"
	SignalBackspaceRate   SignalType = "BACKSPACE_RATE"
	SignalScrollSpeed     SignalType = "SCROLL_SPEED"
	SignalAbandon         SignalType = "ABANDON"
	SignalReRead          SignalType = "RE_READ"
	SignalEmojiReaction   SignalType = "EMOJI_REACTION"
	SignalVoiceHesitation SignalType = "VOICE_HESITATION"
	SignalHintRequested   SignalType = "HINT_REQUESTED"
	SignalSkipRequested   SignalType = "SKIP_REQUESTED"
)

func (s SignalType) Valid() bool {
	switch s {
	case SignalKeypressDelay, SignalBackspaceRate, SignalScrollSpeed, SignalAbandon, SignalReRead,
		SignalEmojiReaction, SignalVoiceHesitation, SignalHintRequested, SignalSkipRequested:
		return true
	}
	return false
}

type CaregiverRole string

const (
	RoleParent    CaregiverRole = "PARENT"
	RoleTeacher   CaregiverRole = "TEACHER"
	RoleTherapist CaregiverRole = "THERAPIST"
	RoleAdmin     CaregiverRole = "ADMIN"
)

func (r CaregiverRole) Valid() bool {
	switch r {
	case RoleParent, RoleTeacher, RoleTherapist, RoleAdmin:
		return true
	}
	return false
}

// ensureID assigns a fresh UUID to rows created without one. Models call it
// from BeforeCreate so ids do not depend on a database-side default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Caregiver{},
		&ChildProfile{},
		&NeuroProfile{},
		&ChildDisability{},
		&LearningSession{},
		&Interaction{},
		&BehavioralSignal{},
		&AdaptiveState{},
		&KnowledgeChunk{},
		&MasteryRecord{},
	}
}
