package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Kaushik-Ravi/dendro/internal/capture"
	"github.com/Kaushik-Ravi/dendro/internal/model"
	"github.com/Kaushik-Ravi/dendro/internal/overlay"
	"github.com/Kaushik-Ravi/dendro/internal/protocol"
	"github.com/Kaushik-Ravi/dendro/internal/sensor"
	"github.com/Kaushik-Ravi/dendro/internal/session"
	"github.com/Kaushik-Ravi/dendro/internal/store"
	"github.com/Kaushik-Ravi/dendro/internal/vision"
)

var (
	measurePhoto    string
	measureDistance float64
	measureSubject  string
	measureMode     string
	measureScript   string
	measureAnnotate bool
	measureSave     bool
	measureFormat   string
	measureTimeout  time.Duration
)

// measureCmd represents the measure command
var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure a tree from a photograph",
	Long: `Measure runs one photogrammetric session:
- Resolve the camera constant from the best available calibration evidence
- Derive the millimeters-per-pixel scale from the measured distance
- Collect reference points through the assisted or manual protocol
- Hand the point set to the delineation service
- Report dimensions, a CO2e estimate, and their tolerances

Points are read as commands, one per line, from --script (or stdin):
  tap X Y    place a point (or just "X,Y")
  confirm    confirm the current stage
  undo       roll back one action
  guide ROW  set the girth snap row

Example:
  dendro measure --photo oak.jpg --distance 12 --subject oak-12 --script taps.txt
  echo "1500,3200
confirm
600,900
2400,950
confirm" | dendro measure --photo oak.jpg --distance 12`,
	RunE: runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)

	measureCmd.Flags().StringVar(&measurePhoto, "photo", "", "photograph to measure from (required)")
	measureCmd.Flags().Float64Var(&measureDistance, "distance", 0, "distance to the tree in meters (required)")
	measureCmd.Flags().StringVar(&measureSubject, "subject", "", "subject ID; enables history and reverse calibration")
	measureCmd.Flags().StringVar(&measureMode, "mode", "assisted", "collection protocol: assisted or manual")
	measureCmd.Flags().StringVar(&measureScript, "script", "-", "point command file, - for stdin")
	measureCmd.Flags().BoolVar(&measureAnnotate, "annotate", false, "write an annotated copy of the photo")
	measureCmd.Flags().BoolVar(&measureSave, "save", false, "persist the measurement for this subject")
	measureCmd.Flags().StringVar(&measureFormat, "report", "yaml", "report format: yaml or json")
	measureCmd.Flags().DurationVar(&measureTimeout, "timeout", 3*time.Minute, "overall measurement timeout")
	_ = measureCmd.MarkFlagRequired("photo")
	_ = measureCmd.MarkFlagRequired("distance")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), measureTimeout)
	defer cancel()

	photo, err := capture.Load(measurePhoto)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open device store: %w", err)
	}
	defer func() { _ = st.Close() }()

	proto := protocol.ProtocolAssisted
	if strings.EqualFold(measureMode, "manual") {
		proto = protocol.ProtocolManual
	} else if !strings.EqualFold(measureMode, "assisted") {
		return fmt.Errorf("unknown mode %q: want assisted or manual", measureMode)
	}

	engine := session.NewEngine(cfg, st, vision.NewClient(cfg.Vision, log),
		sensor.NewHTTPProber(cfg.Sensor.ProbeURL, cfg.Calibration.ProbeTimeout), log)
	s, err := engine.Start(ctx, session.Options{
		SubjectID: measureSubject,
		DistanceM: measureDistance,
		Photo:     photo,
		Protocol:  proto,
	})
	if err != nil {
		return err
	}
	defer s.End()

	c := s.Constant()
	fmt.Fprintf(os.Stderr, "Calibration: %s (constant %.4f)\n", c.Source, c.Value)
	if c.LowConfidence {
		fmt.Fprintln(os.Stderr, "WARNING: no calibration evidence found; using the generic fallback constant. Results are rough estimates.")
	}
	fmt.Fprintf(os.Stderr, "Scale: %.4f mm/px at %.1f m\n\n", s.Scale().MMPerPixel, measureDistance)

	if err := drivePoints(s.Machine()); err != nil {
		return err
	}

	result, err := s.Submit(ctx)
	if errors.Is(err, vision.ErrRecoverable) {
		fmt.Fprintf(os.Stderr, "Delineation failed: %v\n", err)
		if !promptYes("Resubmit the collected points? [y/N] ") {
			return err
		}
		result, err = s.Resubmit(ctx)
	}
	if err != nil {
		return err
	}

	report := result.Report
	if measureAnnotate {
		points, herr := s.Machine().Handoff()
		if herr == nil {
			guide, hasGuide := s.Machine().GuideRow()
			if !hasGuide {
				// Fall back to the breast-height row the service suggested.
				guide = result.GuideRowPx
				if guide <= 0 {
					guide = -1
				}
			}
			out, rerr := overlay.Render(measurePhoto, overlay.Options{
				Points:     points,
				GuideRowPx: guide,
				MaskPNG:    result.OverlayPNG,
			})
			if rerr != nil {
				fmt.Fprintf(os.Stderr, "Annotation failed (measurement unaffected): %v\n", rerr)
			} else {
				report.OverlayPath = out
			}
		}
	}

	if measureSave && measureSubject != "" {
		if err := s.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Saving measurement failed: %v\n", err)
		}
	}

	return writeReport(&report)
}

// drivePoints feeds script commands into the machine until handoff or the
// script ends. The contracts are enforced by gating: a tap in a full stage
// or a premature confirm reports instead of corrupting state.
func drivePoints(m *protocol.Machine) error {
	var in io.Reader = os.Stdin
	if measureScript != "-" && measureScript != "" {
		f, err := os.Open(measureScript)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	fmt.Fprintf(os.Stderr, "[%s] %s\n", m.Stage(), m.Stage().Instruction())
	scanner := bufio.NewScanner(in)
	for m.Stage() != protocol.StageReady && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := applyCommand(m, line); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", line, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", m.Stage(), m.Stage().Instruction())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if m.Stage() != protocol.StageReady {
		return fmt.Errorf("script ended at stage %s before the point set was complete", m.Stage())
	}
	return nil
}

func applyCommand(m *protocol.Machine, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "confirm":
		return m.Confirm()
	case "undo":
		if !m.CanUndo() {
			return errors.New("nothing to undo")
		}
		m.Undo()
		return nil
	case "guide":
		if len(fields) != 2 {
			return errors.New("usage: guide ROW")
		}
		row, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("bad row: %w", err)
		}
		m.SetGirthGuide(row)
		return nil
	case "tap":
		if len(fields) != 3 {
			return errors.New("usage: tap X Y")
		}
		return placeXY(m, fields[1], fields[2])
	default:
		// Bare "X,Y" shorthand.
		if xy := strings.SplitN(fields[0], ",", 2); len(xy) == 2 {
			return placeXY(m, xy[0], xy[1])
		}
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func placeXY(m *protocol.Machine, xs, ys string) error {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return fmt.Errorf("bad y: %w", err)
	}
	return m.Place(x, y)
}

func promptYes(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func writeReport(r *model.Report) error {
	switch strings.ToLower(measureFormat) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}
}
