/*
Package qa checks a candidate agent specification by self-play: a
challenger writes questions, the candidate answers them under its own
behavioral prompt, a judge scores the answers and the acceptance gate
decides whether the specification is calibrated well enough to register.
*/
package qa

import "github.com/josephgoksu/genesis/internal/agentspec"

// Question is one challenge put to the candidate agent.
type Question struct {
	Text           string  `json:"text" yaml:"text"`
	ExpectedAnswer string  `json:"expected_answer" yaml:"expected_answer"`
	Difficulty     float64 `json:"difficulty" yaml:"difficulty"`
	SourceTag      string  `json:"source_tag" yaml:"source_tag"`
}

// Result is the judged outcome of one question.
type Result struct {
	QuestionRef string  `json:"question" yaml:"question"`
	Correct     bool    `json:"correct" yaml:"correct"`
	Score       float64 `json:"score" yaml:"score"`
	Difficulty  float64 `json:"difficulty" yaml:"difficulty"`
	Answer      string  `json:"answer,omitempty" yaml:"answer,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Classification explains a failed verdict.
type Classification string

const (
	Accepted        Classification = "accepted"
	BelowCompetence Classification = "below_competence"
	TooUniform      Classification = "too_uniform"
	TooInconsistent Classification = "too_inconsistent"
)

// Verdict is the acceptance gate's decision for one QA pass.
type Verdict struct {
	Passed         bool           `json:"passed" yaml:"passed"`
	AverageScore   float64        `json:"average_score" yaml:"average_score"`
	PassRate       float64        `json:"pass_rate" yaml:"pass_rate"`
	Variance       float64        `json:"variance" yaml:"variance"`
	Results        []Result       `json:"per_question_results" yaml:"per_question_results"`
	Classification Classification `json:"classification" yaml:"classification"`
	Reason         string         `json:"reason" yaml:"reason"`
	Feedback       string         `json:"feedback" yaml:"feedback"`
	FailedEasy     int            `json:"failed_easy" yaml:"failed_easy"`
	FailedHard     int            `json:"failed_hard" yaml:"failed_hard"`

	// Usage is filled by the assessor, not the gate.
	Usage agentspec.Usage `json:"usage" yaml:"usage"`
}

// AllCorrect reports whether every question was answered correctly.
func (v *Verdict) AllCorrect() bool {
	return len(v.Results) > 0 && v.PassRate >= 1
}
