package logg

// Structured field keys shared by every component logger.
const (
	Layer     = "layer"
	Operation = "op"

	TaskID     = "task_id"
	StepID     = "step_id"
	Action     = "action"
	URL        = "url"
	Index      = "index"
	Generation = "generation"
	Provider   = "provider"
	Driver     = "driver"
)
