package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

const scriptName = "pose_service.py"

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector closed")

// MediaPipeDetector implements Detector using a Python MediaPipe Pose subprocess.
//
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; the
// service answers each frame with one JSON line.
type MediaPipeDetector struct {
	config Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	closed bool
}

// NewMediaPipeDetector starts the pose service and waits for it to report ready.
// Any failure is returned as a MODEL_LOAD_FAILED error.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findPoseScript()
	}
	if scriptPath == "" {
		return nil, failure.ModelLoadError("start pose service", fmt.Errorf("%s not found", scriptName))
	}

	pythonPath := config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d := &MediaPipeDetector{config: config}
	if err := d.start(pythonPath, scriptPath); err != nil {
		return nil, failure.ModelLoadError("start pose service", err)
	}

	slog.Info("detector: pose service started", "script", scriptPath, "python", pythonPath)
	return d, nil
}

// Detect analyzes a frame and returns the detected pose landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*pose.LandmarkSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := d.send(buf.GetBytes()); err != nil {
		return nil, err
	}

	resp, err := d.receive()
	if err != nil {
		return nil, err
	}
	return resp.landmarkSet()
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.stdin != nil {
		d.stdin.Close()
	}
	err := d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	slog.Info("detector: pose service stopped")
	return err
}

func (d *MediaPipeDetector) start(pythonPath, scriptPath string) error {
	d.cmd = exec.Command(pythonPath, scriptPath,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
		"--model-complexity", strconv.Itoa(d.config.ModelComplexity),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)

	// The service writes a ready line once the model is loaded.
	ready, err := d.receive()
	if err != nil {
		d.stdin.Close()
		d.cmd.Wait()
		return fmt.Errorf("wait for ready: %w", err)
	}
	if ready.Error != "" {
		d.stdin.Close()
		d.cmd.Wait()
		return errors.New(ready.Error)
	}

	return nil
}

func (d *MediaPipeDetector) send(data []byte) error {
	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func (d *MediaPipeDetector) receive() (serviceResponse, error) {
	var resp serviceResponse

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".shouldercare", "scripts", scriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".shouldercare/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// serviceResponse is one JSON line from the pose service.
type serviceResponse struct {
	Ready     bool        `json:"ready,omitempty"`
	Landmarks []jsonPoint `json:"landmarks"`
	Error     string      `json:"error,omitempty"`
}

type jsonPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// landmarkSet converts a response into a landmark set, or nil when no person was found.
func (r serviceResponse) landmarkSet() (*pose.LandmarkSet, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("pose service: %s", r.Error)
	}
	if len(r.Landmarks) == 0 {
		return nil, nil
	}

	points := make([]pose.Landmark, len(r.Landmarks))
	for i, p := range r.Landmarks {
		points[i] = pose.Landmark{X: p.X, Y: p.Y, Z: p.Z, Visibility: p.Visibility}
	}
	set := pose.NewLandmarkSet(points)
	return &set, nil
}
