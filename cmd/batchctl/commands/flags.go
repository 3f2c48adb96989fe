package commands

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds each viper key to the named flag. A flag only overrides
// the config file and environment when it is set on the command line.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
