package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := device.ListPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range ports {
			mark := " "
			if p.CH34x() {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s\n", mark, p)
		}
		fmt.Fprintln(out, "\n* USB serial chip used by ZachTek transmitters")
		return nil
	},
}

// deviceInfo is the read-only part of a dump.
type deviceInfo struct {
	Port          string   `yaml:"port"`
	Product       string   `yaml:"product"`
	Hardware      string   `yaml:"hardware"`
	Firmware      string   `yaml:"firmware"`
	ReferenceFreq string   `yaml:"referenceFrequency,omitempty"`
	LowPass       []string `yaml:"lowPassFilters,omitempty"`
	Mode          string   `yaml:"mode"`
}

type dump struct {
	Device   deviceInfo    `yaml:"device"`
	Settings wspr.Settings `yaml:"settings"`
}

func newDump(port string, st wspr.Status) dump {
	info := deviceInfo{
		Port:          port,
		Product:       fmt.Sprintf("%s (%s)", wspr.ProductName(st.Product), st.Product),
		Hardware:      fmt.Sprintf("%s rev %s", st.HardwareVersion, st.HardwareRevision),
		Firmware:      fmt.Sprintf("%s rev %s", st.FirmwareVersion, st.FirmwareRevision),
		ReferenceFreq: st.ReferenceFreq,
		Mode:          st.Mode.String(),
	}
	for i, on := range st.LowPassFilters {
		if on {
			info.LowPass = append(info.LowPass, wspr.BandName(i))
		}
	}
	return dump{Device: info, Settings: wspr.SettingsOf(st)}
}

var dumpSaveProfile string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Read the device settings and print them as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd.Context(), func(e *env, c *conn) error {
			st := c.ctl.Snapshot()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newDump(c.ctl.Session().Name(), st)); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if dumpSaveProfile == "" {
				return nil
			}
			if err := e.cfg.SetProfile(dumpSaveProfile, wspr.SettingsOf(st)); err != nil {
				return err
			}
			return e.cfg.Save()
		})
	},
}

var setFlags struct {
	call, locator, bands, name, location, powerMode, startMode, freq, profile string
	power, pause                                                              int
	noSave                                                                    bool
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Write settings to the device",
	Long: `Write settings to the device and save them to its EEPROM.

Settings come from a stored profile (--profile) and/or flags; flags win.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd.Context(), func(e *env, c *conn) error {
			s, err := settingsFromFlags(cmd, e)
			if err != nil {
				return err
			}
			if s, err = s.Normalize(); err != nil {
				return err
			}
			if err := c.ctl.ApplySettings(s, !setFlags.noSave); err != nil {
				return err
			}
			if err := c.ctl.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("read back: %w", err)
			}
			if diff := wspr.Mismatches(s, c.ctl.Snapshot()); len(diff) > 0 {
				return fmt.Errorf("device did not take: %s", strings.Join(diff, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "settings written")
			return nil
		})
	},
}

func settingsFromFlags(cmd *cobra.Command, e *env) (wspr.Settings, error) {
	var s wspr.Settings
	if setFlags.profile != "" {
		p, err := e.cfg.Profile(setFlags.profile)
		if err != nil {
			return s, err
		}
		s = p
	}
	f := cmd.Flags()
	var errs []error
	if f.Changed("call") {
		s.Callsign = setFlags.call
	}
	if f.Changed("locator") {
		s.Locator = setFlags.locator
	}
	if f.Changed("name") {
		s.Name = setFlags.name
	}
	if f.Changed("power") {
		v := setFlags.power
		s.ReportedPower = &v
	}
	if f.Changed("pause") {
		v := setFlags.pause
		s.Pause = &v
	}
	if f.Changed("bands") {
		s.Bands = []string{}
		for _, b := range strings.Split(setFlags.bands, ",") {
			if b = strings.TrimSpace(b); b != "" {
				s.Bands = append(s.Bands, b)
			}
		}
	}
	if f.Changed("location") {
		errs = append(errs, s.LocationSource.UnmarshalText([]byte(setFlags.location)))
	}
	if f.Changed("power-mode") {
		errs = append(errs, s.PowerMode.UnmarshalText([]byte(setFlags.powerMode)))
	}
	if f.Changed("start-mode") {
		errs = append(errs, s.StartMode.UnmarshalText([]byte(setFlags.startMode)))
	}
	if f.Changed("freq") {
		fq, err := wspr.ParseHz(setFlags.freq)
		errs = append(errs, err)
		s.GeneratorFrequency = fq
	}
	if len(s.Requests()) == 0 {
		errs = append(errs, errors.New("nothing to set"))
	}
	return s, errors.Join(errs...)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the WSPR beacon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd.Context(), func(_ *env, c *conn) error {
			return c.ctl.Start()
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop beacon or signal generator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd.Context(), func(_ *env, c *conn) error {
			return c.ctl.Stop()
		})
	},
}

var generateFreq string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the signal generator",
	Example: `  wsprcfg generate --freq 10M
  wsprcfg generate --freq 14097100.50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd.Context(), func(_ *env, c *conn) error {
			if generateFreq != "" {
				f, err := wspr.ParseHz(generateFreq)
				if err != nil {
					return err
				}
				if err := c.ctl.SetGeneratorFrequency(f); err != nil {
					return err
				}
			}
			if err := c.ctl.StartGenerator(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generating %s Hz\n", c.ctl.Snapshot().GeneratorFrequency)
			return nil
		})
	},
}

// withDevice connects, runs fn and disconnects.
func withDevice(ctx context.Context, fn func(*env, *conn) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()
	c, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	return fn(e, c)
}

func init() {
	dumpCmd.Flags().StringVar(&dumpSaveProfile, "save-profile", "", "also store the settings as a named profile")

	f := setCmd.Flags()
	f.StringVar(&setFlags.call, "call", "", "callsign")
	f.StringVar(&setFlags.locator, "locator", "", "4 character Maidenhead locator")
	f.IntVar(&setFlags.power, "power", 0, "reported power in dBm")
	f.IntVar(&setFlags.pause, "pause", 0, "pause between transmissions in seconds")
	f.StringVar(&setFlags.bands, "bands", "", "comma separated bands to enable, e.g. 20m,40m (empty disables all)")
	f.StringVar(&setFlags.name, "name", "", "device name")
	f.StringVar(&setFlags.location, "location", "", "location source: gps or manual")
	f.StringVar(&setFlags.powerMode, "power-mode", "", "power field: normal or altitude")
	f.StringVar(&setFlags.startMode, "start-mode", "", "mode at power on: idle, wspr or generator")
	f.StringVar(&setFlags.freq, "freq", "", "signal generator frequency in Hz (k and M suffixes allowed)")
	f.StringVar(&setFlags.profile, "profile", "", "start from a stored profile")
	f.BoolVar(&setFlags.noSave, "no-save", false, "do not save to EEPROM")

	generateCmd.Flags().StringVar(&generateFreq, "freq", "", "frequency in Hz (k and M suffixes allowed)")

	rootCmd.AddCommand(portsCmd, dumpCmd, setCmd, startCmd, stopCmd, generateCmd)
}
