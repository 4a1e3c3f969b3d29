package core

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"probekit/logger"
	"probekit/models"

	"github.com/google/uuid"
)

const (
	proxyReadyTimeout    = 15 * time.Second
	proxyShutdownTimeout = 5 * time.Second
)

// proxyProc is one spawned reverse-proxy child process. done is closed when
// the child exits, after which waitErr holds its Wait result.
type proxyProc struct {
	cfg     models.ProxyConfig
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

// RunCapture stands up one reverse-proxy process per entry in
// profile.Proxies, then either drives targetCmd to completion under the
// profile's environment overrides or blocks until interrupted. It returns
// the exit status to propagate. Child proxies are terminated on every exit
// path.
func RunCapture(profile models.CaptureProfile, targetCmd []string) (int, error) {
	outputDir, err := filepath.Abs(profile.OutputDir)
	if err != nil {
		return 1, fmt.Errorf("failed to resolve output directory %s: %w", profile.OutputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return 1, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	sessionID := uuid.NewString()
	logger.Info("Capture session %s starting for target %s", sessionID, profile.Name)

	fmt.Printf("=== Traffic Capture: %s (session %s) ===\n\n", profile.Name, sessionID)
	for _, p := range profile.Proxies {
		fmt.Printf("  :%d -> %s  (%s)\n", p.ListenPort, p.UpstreamURL, p.Purpose)
	}
	if profile.UpstreamProxy != "" {
		fmt.Printf("  Upstream proxy: %s\n", profile.UpstreamProxy)
	}
	fmt.Printf("  Traffic log: %s\n\n", filepath.Join(outputDir, TrafficFileName))

	if len(profile.ManualSteps) > 0 {
		fmt.Println("Manual setup required:")
		for _, step := range profile.ManualSteps {
			fmt.Printf("  - %s\n", step)
		}
		fmt.Println()
	}

	exe, err := os.Executable()
	if err != nil {
		return 1, fmt.Errorf("failed to locate own executable: %w", err)
	}

	procs := make([]*proxyProc, 0, len(profile.Proxies))
	cleanup := func() {
		for _, p := range procs {
			if p.cmd.Process != nil {
				p.cmd.Process.Signal(syscall.SIGTERM)
			}
		}
		for _, p := range procs {
			select {
			case <-p.done:
			case <-time.After(proxyShutdownTimeout):
				logger.Error("Proxy instance :%d did not stop in time, killing", p.cfg.ListenPort)
				if p.cmd.Process != nil {
					p.cmd.Process.Kill()
				}
				<-p.done
			}
		}
		fmt.Printf("Done. Traffic saved to: %s\n", filepath.Join(outputDir, TrafficFileName))
	}

	for _, cfg := range profile.Proxies {
		child := exec.Command(exe, ProxyArgs(cfg, profile.UpstreamProxy)...)
		child.Env = append(os.Environ(), OutputDirEnvVar+"="+outputDir)
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			cleanup()
			return 1, fmt.Errorf("failed to start proxy instance :%d (%s): %w", cfg.ListenPort, cfg.Purpose, err)
		}
		p := &proxyProc{cfg: cfg, cmd: child, done: make(chan struct{})}
		go func() {
			p.waitErr = p.cmd.Wait()
			close(p.done)
		}()
		procs = append(procs, p)
		logger.Info("Started proxy instance :%d -> %s (pid %d)", cfg.ListenPort, cfg.UpstreamURL, child.Process.Pid)
	}

	if err := waitForListeners(procs, proxyReadyTimeout); err != nil {
		cleanup()
		return 1, err
	}
	fmt.Println("All proxies are running.")

	if len(profile.EnvOverrides) > 0 {
		fmt.Println("\nEnvironment overrides for target:")
		for _, line := range EnvOverrideLines(profile.EnvOverrides) {
			fmt.Printf("  %s\n", line)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if len(targetCmd) > 0 {
		target := exec.Command(targetCmd[0], targetCmd[1:]...)
		target.Stdin = os.Stdin
		target.Stdout = os.Stdout
		target.Stderr = os.Stderr
		target.Env = os.Environ()
		for k, v := range profile.EnvOverrides {
			target.Env = append(target.Env, k+"="+v)
		}

		fmt.Printf("\nRunning: %s\n---\n", strings.Join(targetCmd, " "))
		if err := target.Start(); err != nil {
			cleanup()
			return 1, fmt.Errorf("failed to run target command: %w", err)
		}

		// Signals sent to the runner are forwarded to the target; once it
		// exits, the proxies come down either way.
		go func() {
			for sig := range sigs {
				target.Process.Signal(sig)
			}
		}()

		runErr := target.Wait()
		cleanup()

		if runErr == nil {
			return 0, nil
		}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("target command failed: %w", runErr)
	}

	fmt.Println("\nPress Ctrl+C to stop.")

	cases := earlyExitChannel(procs)
	select {
	case sig := <-sigs:
		fmt.Printf("\nReceived %s, stopping proxy instances...\n", sig)
		cleanup()
		return 0, nil
	case failed := <-cases:
		cleanup()
		return 1, fmt.Errorf("proxy instance :%d (%s) exited unexpectedly", failed.cfg.ListenPort, failed.cfg.Purpose)
	}
}

// ProxyArgs builds the argument vector for spawning one proxy instance as a
// child process of this binary.
func ProxyArgs(cfg models.ProxyConfig, upstreamProxy string) []string {
	args := []string{
		"proxy",
		"--listen-port", strconv.Itoa(cfg.ListenPort),
		"--upstream-url", cfg.UpstreamURL,
		"--purpose", cfg.Purpose,
	}
	if upstreamProxy != "" {
		args = append(args, "--upstream-proxy", upstreamProxy)
	}
	return args
}

// EnvOverrideLines renders env overrides as shell export lines in a stable
// order, for users driving the target manually in another session.
func EnvOverrideLines(overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, "export "+k+"="+overrides[k])
	}
	return lines
}

// waitForListeners polls every proxy's listen port until it accepts TCP
// connections, failing fast when an instance dies during startup. A partial
// capture session is worse than no session, so any single failure aborts.
func waitForListeners(procs []*proxyProc, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, p := range procs {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(p.cfg.ListenPort))
		for {
			select {
			case <-p.done:
				return fmt.Errorf("proxy instance :%d (%s) exited during startup: %v", p.cfg.ListenPort, p.cfg.Purpose, p.waitErr)
			default:
			}
			conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
			if err == nil {
				conn.Close()
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("proxy instance :%d (%s) not ready after %s", p.cfg.ListenPort, p.cfg.Purpose, timeout)
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// earlyExitChannel fans in child exits so the idle runner can notice a dying
// proxy while blocked on signals.
func earlyExitChannel(procs []*proxyProc) <-chan *proxyProc {
	ch := make(chan *proxyProc, len(procs))
	for _, p := range procs {
		go func(p *proxyProc) {
			<-p.done
			ch <- p
		}(p)
	}
	return ch
}
