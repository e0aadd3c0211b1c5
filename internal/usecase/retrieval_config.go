package usecase

// RetrievalConfig holds the tunables shared across the pipeline's
// retrieval-adjacent stages. Defaults mirror the fused corpus's own
// settings rather than the teacher's news-tenant values.
type RetrievalConfig struct {
	RetrievalTopK          int
	RetrievalPrefetchLimit int
	RerankTopK             int
	GradingThreshold       float64
	GradingFallbackTopK    int
	MaxRetries             int
	ReserveOutputTokens    int
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		RetrievalTopK:          15,
		RetrievalPrefetchLimit: 30,
		RerankTopK:             7,
		GradingThreshold:       0.15,
		GradingFallbackTopK:    3,
		MaxRetries:             3,
		ReserveOutputTokens:    4000,
	}
}
