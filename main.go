package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPort     string
	flagDebug    bool
	flagConfig   string
	flagSimulate bool
)

var rootCmd = &cobra.Command{
	Use:   "wsprcfg",
	Short: "Configure ZachTek WSPR transmitters",
	Long: `wsprcfg reads and writes the settings of ZachTek WSPR transmitters
(WSPR TX LP1, Desktop and Mini) over their USB serial port.

Run without a subcommand to open the configuration window.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGUI()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagPort, "port", "p", "", "serial port the device is on")
	pf.BoolVarP(&flagDebug, "debug", "d", false, "log serial traffic")
	pf.StringVar(&flagConfig, "config", "", "config file (default is the user config dir)")
	pf.BoolVar(&flagSimulate, "simulate", false, "talk to a built-in emulated device")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
