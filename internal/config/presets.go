package config

var Presets = map[string]map[string]*Config{
	"shock_tube": {
		"standard": {
			Scenario: "shock_tube", Dt: 5e-4, Duration: 0.2, Resolution: 64,
		},
		"fine": {
			Scenario: "shock_tube", Dt: 2e-4, Duration: 0.2, Resolution: 256,
		},
	},
	"shock_tube_walls": {
		"standard": {
			Scenario: "shock_tube_walls", Dt: 5e-4, Duration: 0.2, Resolution: 64,
		},
	},
	"periodic_box_2d": {
		"gentle": {
			Scenario: "periodic_box_2d", Dt: 1e-3, Duration: 0.5, Resolution: 16,
			Amplitude: 0.02, Seed: 42,
		},
		"stirred": {
			Scenario: "periodic_box_2d", Dt: 5e-4, Duration: 0.5, Resolution: 32,
			Amplitude: 0.1, Seed: 42,
		},
	},
	"gravity_cube": {
		"coarse": {
			Scenario: "gravity_cube", Dt: 1e-3, Duration: 0.5, Resolution: 6,
		},
		"fine": {
			Scenario: "gravity_cube", Dt: 5e-4, Duration: 0.5, Resolution: 10,
		},
	},
}

func GetPreset(scenario, name string) *Config {
	group, ok := Presets[scenario]
	if !ok {
		return nil
	}
	return group[name]
}

func ListPresets(scenario string) []string {
	group, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}
