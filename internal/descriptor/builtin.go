package descriptor

// Builtin is used when no plugin.yml is found in the data folder.
func Builtin(version string) *Descriptor {
	return &Descriptor{
		Name:        "PluginTemplate",
		Version:     version,
		Main:        "com.codelanx.plugintemplate.PluginTemplate",
		Description: "A template for plugins with update checking, commands and listeners",
		Authors:     []string{"1Rogue"},
		Website:     "https://www.codelanx.com",
		Commands: map[string]Command{
			"plugintemplate": {
				Description: "Main command for PluginTemplate",
				Usage:       "/<command> [help|version|update|reload]",
				Aliases:     []string{"pt"},
			},
		},
	}
}
