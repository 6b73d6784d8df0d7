package models

// GenerateImageRequest carries the user prompt plus optional tuning
// parameters. Field names mirror the generation provider's API so existing
// clients keep working unchanged.
type GenerateImageRequest struct {
	Prompt           string  `json:"prompt"`
	FinetuneID       string  `json:"finetune_id,omitempty"`
	FinetuneStrength float64 `json:"finetune_strength,omitempty"`
	AspectRatio      string  `json:"aspect_ratio,omitempty"`
	Steps            int     `json:"steps,omitempty"`
	Guidance         float64 `json:"guidance,omitempty"`
	SafetyTolerance  string  `json:"safety_tolerance,omitempty"`
	Seed             *int64  `json:"seed,omitempty"`
}

type StoreImageRequest struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}
