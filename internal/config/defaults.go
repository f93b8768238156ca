package config

const (
	defaultBaseDir                 = "~/.local/share/assetforge"
	defaultMaxAssetsPerPack        = 10
	defaultConvertWorkers          = 1
	defaultUSD2GLTFBinary          = "usd2gltf"
	defaultBlenderBinary           = "blender"
	defaultConverterTimeoutSeconds = 300
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir: defaultBaseDir,
		},
		Pipeline: Pipeline{
			MaxAssetsPerPack: defaultMaxAssetsPerPack,
			ConvertWorkers:   defaultConvertWorkers,
		},
		Converters: Converters{
			USD2GLTFBinary: defaultUSD2GLTFBinary,
			BlenderBinary:  defaultBlenderBinary,
			TimeoutSeconds: defaultConverterTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
