package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Kaushik-Ravi/dendro/internal/inclinometer"
	"github.com/Kaushik-Ravi/dendro/internal/model"
	"github.com/Kaushik-Ravi/dendro/internal/sensor"
)

var (
	levelDistance float64
	levelSource   string
	levelReplay   string
	levelInterval time.Duration
)

// levelCmd represents the level command
var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Measure tree height from two sighted angles",
	Long: `Level runs the inclinometric path: no photograph, just the distance to
the trunk and two angle sightings from a live orientation feed.

Sight the base, type "lock"; sight the top, type "lock" again. The height
is distance * (tan(top) - tan(base)), with the base angle negative when
the base sits below eye level. A low-confidence reading prompts a retry
instead of being accepted silently.

Commands: lock, angle (show current), retry (discard locks), quit.

Example:
  dendro level --distance 12
  dendro level --distance 12 --replay angles.txt`,
	RunE: runLevel,
}

func init() {
	rootCmd.AddCommand(levelCmd)

	levelCmd.Flags().Float64Var(&levelDistance, "distance", 0, "distance to the tree base in meters (required)")
	levelCmd.Flags().StringVar(&levelSource, "source", "", "orientation feed websocket URL (default from config)")
	levelCmd.Flags().StringVar(&levelReplay, "replay", "", "replay angles from a file instead of the live feed")
	levelCmd.Flags().DurationVar(&levelInterval, "replay-interval", 10*time.Millisecond, "delay between replayed samples")
	_ = levelCmd.MarkFlagRequired("distance")
}

func runLevel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := openAngleSource(ctx, cfg)
	if err != nil {
		if errors.Is(err, sensor.ErrPermissionDenied) {
			return fmt.Errorf("%w\nthe inclinometric path is disabled; photogrammetric measurement (dendro measure) remains available", err)
		}
		return err
	}

	stream := sensor.NewStream(src, cfg.Sensor, log)
	if err := stream.Start(ctx); err != nil {
		return err
	}
	defer stream.Stop()

	// Give the smoother a moment to accumulate before the first prompt.
	time.Sleep(150 * time.Millisecond)

	calc := inclinometer.NewCalculator(cfg.Inclinometer)
	reading, err := collectReading(stream, calc)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(reading)
	if err != nil {
		return fmt.Errorf("render reading: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func openAngleSource(ctx context.Context, cfg *model.Config) (sensor.Source, error) {
	if levelReplay != "" {
		angles, err := readAngles(levelReplay)
		if err != nil {
			return nil, err
		}
		return sensor.NewReplaySource(angles, levelInterval), nil
	}
	url := levelSource
	if url == "" {
		url = cfg.Sensor.SourceURL
	}
	return sensor.NewWebsocketSource(ctx, url)
}

func readAngles(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	var angles []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("bad angle %q: %w", line, err)
		}
		angles = append(angles, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	return angles, nil
}

// collectReading drives the two-lock loop. Each attempt takes two explicit
// locks; a flagged result discards both and starts over on operator
// request.
func collectReading(stream *sensor.Stream, calc *inclinometer.Calculator) (*model.InclinometricReading, error) {
	stdin := bufio.NewScanner(os.Stdin)
	for {
		locks := make([]sensor.AngleLock, 0, 2)
		labels := [2]string{"base", "top"}

		for len(locks) < 2 {
			fmt.Fprintf(os.Stderr, "Sight the %s and type 'lock' (angle/retry/quit): ", labels[len(locks)])
			if !stdin.Scan() {
				return nil, errors.New("input closed before both angles were locked")
			}
			switch strings.TrimSpace(strings.ToLower(stdin.Text())) {
			case "lock":
				l, err := stream.Lock()
				if err != nil {
					fmt.Fprintf(os.Stderr, "  cannot lock: %v\n", err)
					continue
				}
				fmt.Fprintf(os.Stderr, "  locked %s at %.1f deg (jitter %.2f)\n", labels[len(locks)], l.Degrees, l.JitterDeg)
				locks = append(locks, l)
			case "angle":
				if cur, ok := stream.Current(); ok {
					fmt.Fprintf(os.Stderr, "  current angle %.1f deg, jitter %.2f\n", cur.AngleDeg, stream.Jitter())
				} else {
					fmt.Fprintln(os.Stderr, "  no samples yet")
				}
			case "retry":
				locks = locks[:0]
				fmt.Fprintln(os.Stderr, "  locks discarded")
			case "quit":
				return nil, errors.New("aborted")
			default:
				fmt.Fprintln(os.Stderr, "  commands: lock, angle, retry, quit")
			}
		}

		reading := calc.Compute(levelDistance, locks[0].Degrees, locks[1].Degrees)
		reading.JitterDeg = maxf(locks[0].JitterDeg, locks[1].JitterDeg)

		if err := calc.Validate(reading); err != nil {
			fmt.Fprintf(os.Stderr, "Reading flagged: %v\n", err)
			_, factors := calc.Confidence(reading.DistanceM, reading.BaseAngleDeg, reading.TopAngleDeg)
			for _, f := range factors {
				fmt.Fprintf(os.Stderr, "  %-12s %.2f  (%s)\n", f.Name, f.Value, f.Description)
			}
			if promptYes("Retry the sighting? [y/N] ") {
				continue // the flagged reading is discarded
			}
			return nil, err
		}
		return &reading, nil
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
