package opsmeta

// Progress checkpoints a sync writes at well-defined stages: after teams,
// after apps, after people, and after final validation.
const (
	ProgressAfterTeams      = 33
	ProgressAfterApps       = 66
	ProgressAfterPeople     = 90
	ProgressAfterValidation = 100
)
