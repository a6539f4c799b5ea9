package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kaushik-Ravi/dendro/internal/calibrate"
	"github.com/Kaushik-Ravi/dendro/internal/model"
	"github.com/Kaushik-Ravi/dendro/internal/sensor"
	"github.com/Kaushik-Ravi/dendro/internal/store"
)

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Inspect and manage the device's camera calibration",
	Long: `Calibrate manages the persisted per-device calibration that the
measurement engine resolves first:

  show      what is stored for this device, and what resolution would use
  set       store a camera constant directly
  set-fov   store a measured horizontal field of view in degrees
  probe     ask the companion camera stream for its field of view
  reset     forget everything stored for this device`,
}

var calibrateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored calibration and the resolution outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openCalibration()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("Device: %s (key version %s)\n", cfg.DeviceID, store.KeyVersion)
		if v, ok, err := st.Constant(cfg.DeviceID); err == nil && ok {
			fmt.Printf("Stored constant:  %.4f\n", v)
		} else {
			fmt.Println("Stored constant:  none")
		}
		if r, ok, err := st.FOVRatio(cfg.DeviceID); err == nil && ok {
			hfov := 2 * math.Atan(r) * 180 / math.Pi
			fmt.Printf("Stored FOV ratio: %.4f (%.1f deg horizontal)\n", r, hfov)
		} else {
			fmt.Println("Stored FOV ratio: none")
		}

		ev := calibrate.GatherEvidence(st, cfg.DeviceID, "", model.CaptureMeta{}, 0, 0)
		c := calibrate.NewResolver(cfg.Calibration).Resolve(ev)
		fmt.Printf("\nResolution without a photo: %.4f from %s", c.Value, c.Source)
		if c.LowConfidence {
			fmt.Print(" (low confidence)")
		}
		fmt.Println()
		return nil
	},
}

var calibrateSetCmd = &cobra.Command{
	Use:   "set <constant>",
	Short: "Store a camera constant for this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("constant must be a positive number, got %q", args[0])
		}
		cfg, st, err := openCalibration()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.PutConstant(cfg.DeviceID, v, model.SourceStored); err != nil {
			return err
		}
		fmt.Printf("Stored constant %.4f for %s\n", v, cfg.DeviceID)
		return nil
	},
}

var calibrateSetFOVCmd = &cobra.Command{
	Use:   "set-fov <degrees>",
	Short: "Store a measured horizontal field of view",
	Long: `Store the result of a manual calibration: photograph an object of known
width at a known distance, derive the horizontal field of view, and store
it here. The ratio tan(hfov/2) is what resolution actually consumes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deg, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad field of view %q", args[0])
		}
		ratio, err := calibrate.RatioFromHFOV(deg)
		if err != nil {
			return err
		}
		cfg, st, err := openCalibration()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.PutFOVRatio(cfg.DeviceID, ratio, model.SourceFOVRatio); err != nil {
			return err
		}
		fmt.Printf("Stored FOV ratio %.4f (%.1f deg) for %s\n", ratio, deg, cfg.DeviceID)
		return nil
	},
}

var calibrateProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the companion camera stream for its field of view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openCalibration()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Calibration.ProbeTimeout)
		defer cancel()
		prober := sensor.NewHTTPProber(cfg.Sensor.ProbeURL, cfg.Calibration.ProbeTimeout)
		hfov, err := prober.Probe(ctx)
		if err != nil {
			return fmt.Errorf("probe failed (calibration falls through to the next tier during measurement): %w", err)
		}
		ratio, err := calibrate.RatioFromHFOV(hfov)
		if err != nil {
			return err
		}
		if err := st.PutFOVRatio(cfg.DeviceID, ratio, model.SourceFOVRatio); err != nil {
			return err
		}
		fmt.Printf("Probed %.1f deg horizontal FOV; stored ratio %.4f for %s\n", hfov, ratio, cfg.DeviceID)
		return nil
	},
}

var calibrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all stored calibration for this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openCalibration()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.ResetCalibration(cfg.DeviceID); err != nil {
			return err
		}
		fmt.Printf("Calibration cleared for %s\n", cfg.DeviceID)
		return nil
	},
}

func openCalibration() (*model.Config, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Store, newLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("open device store: %w", err)
	}
	return cfg, st, nil
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.AddCommand(calibrateShowCmd)
	calibrateCmd.AddCommand(calibrateSetCmd)
	calibrateCmd.AddCommand(calibrateSetFOVCmd)
	calibrateCmd.AddCommand(calibrateProbeCmd)
	calibrateCmd.AddCommand(calibrateResetCmd)
}
