// ABOUTME: Environmental-impact rollup over a task's completed action stages.
// ABOUTME: Sums carbon, energy, and tokens, and estimates water use from two blended methods.

package pipeline

// ImpactCoefficients hold the estimation constants for the water figure.
// They are domain policy, loaded from configuration so the estimate stays
// auditable; nothing in the calculator inlines a number.
type ImpactCoefficients struct {
	// WaterLitersPerKWh is the linear water-per-energy coefficient for
	// datacenter cooling, in liters per kilowatt-hour.
	WaterLitersPerKWh float64 `yaml:"water_liters_per_kwh"`

	// WaterMlPerToken is the water-per-token coefficient measured for the
	// reference model, in milliliters per token.
	WaterMlPerToken float64 `yaml:"water_ml_per_token"`

	// ModelParamsB is the serving model's size in billions of parameters,
	// used to scale the per-token coefficient.
	ModelParamsB float64 `yaml:"model_params_b"`

	// ReferenceParamsB is the size of the model the per-token coefficient
	// was measured against, in billions of parameters.
	ReferenceParamsB float64 `yaml:"reference_params_b"`

	// GridCarbonGramsPerKWh is the grid carbon intensity used to back out an
	// energy estimate when a stage reports carbon without an energy figure.
	GridCarbonGramsPerKWh float64 `yaml:"grid_carbon_g_per_kwh"`
}

// DefaultImpactCoefficients returns the stock estimation constants: 1.8 L/kWh
// cooling water, 0.3 mL/token measured on a 175B reference model, serving an
// 8B model, against a 480 g/kWh grid.
func DefaultImpactCoefficients() ImpactCoefficients {
	return ImpactCoefficients{
		WaterLitersPerKWh:     1.8,
		WaterMlPerToken:       0.3,
		ModelParamsB:          8,
		ReferenceParamsB:      175,
		GridCarbonGramsPerKWh: 480,
	}
}

// Impact is the aggregate resource usage derived from one task.
type Impact struct {
	CarbonGrams float64 `json:"carbon_grams"`
	WaterMl     float64 `json:"water_ml"`
	Tokens      int     `json:"tokens"`
}

// ComputeImpact rolls up a task's thoughts into an Impact, or nil when no
// thought carries a carbon figure — "no data" is distinct from "zero
// impact", so absence never reads as a clean zero.
//
// Carbon only accumulates from action stages whose carbon_grams is present
// and non-null; energy and tokens accumulate wherever present. Water blends
// two estimates: (a) total energy (backed out of carbon via the grid
// intensity when no energy was reported) times the water-per-energy
// coefficient and
// (b) total tokens times the per-token coefficient scaled by the model-size
// ratio. The final figure is the arithmetic mean of the two.
func ComputeImpact(task *Task, coeffs ImpactCoefficients) *Impact {
	if task == nil {
		return nil
	}

	var (
		carbonGrams float64
		energyMWh   float64
		tokens      float64
		hasCarbon   bool
	)

	for _, thought := range task.Thoughts {
		stage, ok := thought.Stages[StageActionResult]
		if !ok {
			continue
		}
		if c := stageCarbon(stage); c != nil {
			carbonGrams += *c
			hasCarbon = true
		}
		energyMWh += stageFloat(stage, "energy_mwh")
		tokens += stageFloat(stage, "tokens_total")
	}

	if !hasCarbon {
		return nil
	}

	// Method (a): liters per kWh, scaled to milliliters. Energy arrives in
	// milliwatt-hours. When the stream reported carbon but no energy, back
	// the energy estimate out of the carbon via the grid intensity, so a
	// carbon-only task still gets a water figure.
	energyKWh := energyMWh / 1e6
	if energyKWh == 0 && coeffs.GridCarbonGramsPerKWh > 0 {
		energyKWh = carbonGrams / coeffs.GridCarbonGramsPerKWh
	}
	waterFromEnergy := energyKWh * coeffs.WaterLitersPerKWh * 1000

	// Method (b): per-token water scaled by model size relative to the
	// reference the coefficient was measured on.
	sizeRatio := 0.0
	if coeffs.ReferenceParamsB > 0 {
		sizeRatio = coeffs.ModelParamsB / coeffs.ReferenceParamsB
	}
	waterFromTokens := tokens * coeffs.WaterMlPerToken * sizeRatio

	return &Impact{
		CarbonGrams: carbonGrams,
		WaterMl:     (waterFromEnergy + waterFromTokens) / 2,
		Tokens:      int(tokens),
	}
}

// stageCarbon reads a stage's carbon figure, nil when absent or null.
func stageCarbon(stage Stage) *float64 {
	v, ok := stage.Data["carbon_grams"]
	if !ok || v == nil {
		return nil
	}
	n, ok := v.(float64)
	if !ok {
		return nil
	}
	return &n
}

// stageFloat reads a numeric stage field, zero when absent or non-numeric.
func stageFloat(stage Stage, key string) float64 {
	if v, ok := stage.Data[key].(float64); ok {
		return v
	}
	return 0
}
