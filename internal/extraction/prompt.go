package extraction

import (
	"fmt"
	"strings"
	"time"
)

const schemaBlock = `{
  "workout_date": "YYYY-MM-DD",
  "workout_start_time": "HH:MM" or null,
  "workout_duration_minutes": number or null,
  "notes": "string or null",
  "exercises": [
    {
      "exercise_name": "standardized exercise name",
      "exercise_type": "strength|cardio|flexibility|other",
      "muscle_groups": ["muscle", "groups"],
      "sets": number or null,
      "reps": [rep counts per set] or null,
      "weight_lbs": [weight per set] or null,
      "duration_minutes": number or null,
      "distance_miles": number or null,
      "effort_level": number from 1 to 10 or null,
      "rest_seconds": number or null,
      "notes": "string or null",
      "order_in_workout": number
    }
  ]
}`

var baseRules = []string{
	`Use standard exercise names such as "Bench Press", "Push-ups" or "Squats".`,
	"Infer muscle groups from the exercise.",
	`Expand "3 sets of 10" into reps [10, 10, 10].`,
	"Speech is often fragmented and self-correcting. When a value is stated twice, the last one wins.",
	`Bare numbers next to an exercise are usually weight then reps: "bench press 185 5" is 5 reps at 185 lbs.`,
	"List every weight when it changes between sets.",
	"Map effort words to the 1-10 scale: easy 3-4, moderate 5-6, hard 7-8, very hard 9-10.",
	"Keep exercises in the order they are mentioned.",
	"Use null for anything not stated. Do not guess.",
}

var sessionRules = []string{
	"Treat an exercise named in more than one recording as one exercise with additional sets, not as a new exercise.",
	"Order exercises by their first mention across all recordings.",
}

// buildPrompt renders the extraction prompt. Multi-recording sessions get
// the merge instructions.
func buildPrompt(req Request, today time.Time) string {
	var b strings.Builder

	b.WriteString("You extract structured workout data from a transcribed voice note in which a person describes the workout they just did.\n\n")

	multi := req.IsSession && req.RecordingCount > 1
	if multi {
		fmt.Fprintf(&b, "The text below joins %d recordings made during ONE workout session. "+
			"They are labeled \"Recording 1:\", \"Recording 2:\" and so on. "+
			"Produce a single workout that covers all of them.\n\n", req.RecordingCount)
	}

	b.WriteString("Reply with JSON in exactly this shape:\n\n")
	b.WriteString(schemaBlock)
	b.WriteString("\n\nRules:\n")

	rules := baseRules
	if multi {
		rules = append(append([]string{}, baseRules...), sessionRules...)
	}
	for i, rule := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}

	fmt.Fprintf(&b, "\nToday's date is %s.\n\n", today.Format(time.DateOnly))
	b.WriteString("Transcription:\n\"\"\"\n")
	b.WriteString(req.Text)
	b.WriteString("\n\"\"\"\n\nReturn only the JSON object.")

	return b.String()
}
