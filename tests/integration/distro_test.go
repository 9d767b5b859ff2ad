//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMain(m *testing.M) {
	if err := exec.Command("docker", "info").Run(); err != nil {
		fmt.Println("Docker not available; skipping integration tests:", err)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// findProjectRoot walks up from this file's location until it finds go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		dir, _ := os.Getwd()
		return dir
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	wd, _ := os.Getwd()
	return wd
}

// testScript runs the unit tests, then the device tests against a PulseAudio
// daemon whose default source is the monitor of a null sink.
const testScript = `set -e
%s
cp -r /src/. /workspace/
cd /workspace
GOINSTALLED=$(go version | awk '{print $3}' | sed 's/go//')
go mod edit -go="$GOINSTALLED" -toolchain=none
go test -count=1 ./...
pulseaudio -D --exit-idle-time=-1 --disallow-exit
sleep 1
pactl load-module module-null-sink sink_name=coach_null
pactl set-default-source coach_null.monitor
go test -v -count=1 -tags pulsetest ./internal/audio/...
`

func TestDeviceCaptureInContainer(t *testing.T) {
	projectRoot := findProjectRoot(t)

	images := []struct {
		name    string
		image   string
		install string
	}{
		{
			name:    "debian-bookworm",
			image:   "golang:1.26-bookworm",
			install: "apt-get update -qq && apt-get install -y -qq pulseaudio pulseaudio-utils >/dev/null",
		},
		{
			name:    "alpine",
			image:   "golang:1.26-alpine",
			install: "apk add --no-cache pulseaudio pulseaudio-utils >/dev/null",
		},
	}

	for _, img := range images {
		t.Run(img.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()

			req := testcontainers.ContainerRequest{
				Image: img.image,
				Mounts: testcontainers.ContainerMounts{
					{
						Source:   testcontainers.GenericBindMountSource{HostPath: projectRoot},
						Target:   testcontainers.ContainerMountTarget("/src"),
						ReadOnly: true,
					},
					{
						Source: testcontainers.GenericVolumeMountSource{Name: "gotalk-coach-gomodcache"},
						Target: testcontainers.ContainerMountTarget("/go/pkg/mod"),
					},
				},
				Cmd:        []string{"/bin/sh", "-c", fmt.Sprintf(testScript, img.install)},
				WaitingFor: wait.ForExit().WithExitTimeout(15 * time.Minute),
			}

			container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
				ContainerRequest: req,
				Started:          true,
			})
			if err != nil {
				t.Errorf("[%s] failed to start container: %v", img.name, err)
				return
			}
			defer container.Terminate(context.Background()) //nolint:errcheck

			var logOutput string
			if logReader, err := container.Logs(ctx); err == nil {
				raw, _ := io.ReadAll(logReader)
				logOutput = string(raw)
			}
			t.Logf("[%s] container logs:\n%s", img.name, logOutput)

			state, err := container.State(ctx)
			if err != nil {
				t.Errorf("[%s] failed to get container state: %v", img.name, err)
				return
			}
			if state.ExitCode != 0 {
				// Errorf so the other image still runs.
				t.Errorf("[%s] container exited with code %d", img.name, state.ExitCode)
				if strings.Contains(logOutput, "--- FAIL") {
					t.Logf("[%s] test failures detected in logs", img.name)
				}
			}
			if !strings.Contains(logOutput, "TestPulseDeviceFLACStream") {
				t.Errorf("[%s] device tests did not run", img.name)
			}
		})
	}
}
