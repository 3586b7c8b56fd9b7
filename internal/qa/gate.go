package qa

import (
	"errors"
	"fmt"
	"strings"
)

// Acceptance thresholds.
const (
	MinAverageScore = 0.6
	MinVariance     = 0.15
	MaxVariance     = 0.35

	easyDifficulty = 0.5
	hardDifficulty = 0.7
	maxFocusItems  = 3
)

// ErrInsufficientData is returned when there is nothing to gate on.
var ErrInsufficientData = errors.New("insufficient data: no evaluation results")

// Evaluate applies the acceptance gate. It is a pure function of results.
func Evaluate(results []Result) (Verdict, error) {
	if len(results) == 0 {
		return Verdict{}, ErrInsufficientData
	}

	scores := make([]float64, len(results))
	outcomes := make([]bool, len(results))
	for i, r := range results {
		scores[i] = r.Score
		outcomes[i] = r.Correct
	}

	v := Verdict{
		AverageScore: Mean(scores),
		PassRate:     PassRate(outcomes),
		Results:      append([]Result(nil), results...),
	}
	v.Variance = BernoulliVariance(v.PassRate)
	v.Classification = classify(v.AverageScore, v.Variance)
	v.Passed = v.Classification == Accepted
	v.Reason = reason(v.Classification, v.AverageScore, v.Variance)
	v.FailedEasy, v.FailedHard = countFailures(results)
	v.Feedback = feedback(results)
	return v, nil
}

func classify(avg, variance float64) Classification {
	switch {
	case avg < MinAverageScore:
		return BelowCompetence
	case variance < MinVariance:
		return TooUniform
	case variance > MaxVariance:
		return TooInconsistent
	}
	return Accepted
}

func reason(c Classification, avg, variance float64) string {
	switch c {
	case BelowCompetence:
		return fmt.Sprintf("Agent scored below competence threshold (avg=%.2f < 0.6). Agent needs more training or simpler tasks.", avg)
	case TooUniform:
		if variance == 0 {
			return fmt.Sprintf("Task difficulty not optimal (variance=%.3f, expected ~0.25). All questions answered identically - need more varied difficulty levels.", variance)
		}
		return fmt.Sprintf("Task difficulty not optimal (variance=%.3f, expected ~0.25). Questions too easy or too hard - need better difficulty distribution.", variance)
	case TooInconsistent:
		return fmt.Sprintf("Task difficulty not optimal (variance=%.3f, expected ~0.25). Performance too inconsistent - questions may be poorly calibrated.", variance)
	}
	return fmt.Sprintf("Agent passed all quality checks (avg=%.2f, variance=%.3f ≈ 0.25)", avg, variance)
}

func countFailures(results []Result) (easy, hard int) {
	for _, r := range results {
		if r.Correct {
			continue
		}
		if r.Difficulty < easyDifficulty {
			easy++
		}
		if r.Difficulty >= hardDifficulty {
			hard++
		}
	}
	return easy, hard
}

func feedback(results []Result) string {
	var failed []Result
	for _, r := range results {
		if !r.Correct {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return "All questions answered correctly, but this may indicate questions are too easy. Consider increasing difficulty."
	}

	easy, hard := countFailures(failed)
	var lines []string
	if easy > 0 {
		lines = append(lines, fmt.Sprintf("Failed %d easy question(s) - fundamental gaps detected", easy))
	}
	if hard > 0 {
		lines = append(lines, fmt.Sprintf("Failed %d hard question(s) - expected at capability frontier", hard))
	}
	lines = append(lines, "Focus on improving:")
	for i, r := range failed {
		if i == maxFocusItems {
			break
		}
		lines = append(lines, fmt.Sprintf("  - '%s' (difficulty: %.1f)", r.QuestionRef, r.Difficulty))
	}
	return strings.Join(lines, "\n")
}
