package neat

// Smoothing constants of the threshold controller.
const (
	thresholdMin        = 0.1
	thresholdSmoothTime = 0.1
	thresholdDeltaTime  = 0.01
)

// DistanceThreshold adapts the species distance threshold so the number of
// species drifts toward the configured target. Fewer species than wanted
// lowers the threshold toward thresholdMin, more raises it toward
// compatibility_threshold * threshold_max_multiplier. A lower threshold splits
// the population into more species, so this is the direction that converges.
type DistanceThreshold struct {
	Threshold float64
	Velocity  float64
}

// NewDistanceThreshold starts the controller at the configured threshold.
func NewDistanceThreshold(cfg *SpeciesSetConfig) DistanceThreshold {
	return DistanceThreshold{Threshold: cfg.CompatibilityThreshold}
}

// Update moves the threshold one step for the current species count. It does
// nothing when the count is on target.
func (d *DistanceThreshold) Update(cfg *SpeciesSetConfig, speciesCount int) {
	delta := cfg.TargetSpeciesCount - speciesCount
	if delta == 0 {
		return
	}

	target := cfg.CompatibilityThreshold * cfg.ThresholdMaxMultiplier
	if delta > 0 {
		target = thresholdMin
	}
	d.Threshold = d.smoothDamp(target, thresholdSmoothTime, thresholdDeltaTime)
}

// smoothDamp is a critically damped spring toward target. Velocity carries
// over between calls and a step that would cross the target snaps onto it.
func (d *DistanceThreshold) smoothDamp(target, smoothTime, deltaTime float64) float64 {
	current := d.Threshold
	omega := 2 / smoothTime
	x := omega * deltaTime
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	temp := (d.Velocity + omega*change) * deltaTime
	velocity := (d.Velocity - omega*temp) * exp
	next := target + (change+temp)*exp

	if (target-current > 0) == (next > target) {
		next = target
		velocity = 0
	}
	d.Velocity = velocity
	return next
}
