package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/mount"
)

// runner executes a prepared command and returns combined output and the
// process exit code. Injectable for tests.
type runner func(ctx context.Context, name string, args ...string) (string, int, error)

// CLIProvider shells out to the platform mount tools: mount_smbfs and
// mount -t nfs on darwin, mount -t cifs / mount -t nfs on linux, umount
// everywhere.
type CLIProvider struct {
	run  runner
	goos string
}

// NewCLI creates a provider backed by the local mount binaries.
func NewCLI() *CLIProvider {
	return &CLIProvider{run: execRun, goos: runtime.GOOS}
}

func execRun(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.String(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.String(), exitErr.ExitCode(), nil
	}
	return out.String(), -1, err
}

// Mount implements Provider.
func (p *CLIProvider) Mount(ctx context.Context, req Request) (int, error) {
	name, args, err := p.mountCommand(req)
	if err != nil {
		return 0, err
	}

	logger.Debug("executing mount", logger.KeyShare, req.ResourceURI, logger.KeyMountPoint, req.TargetPath)
	output, code, err := p.run(ctx, name, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", name, err)
	}
	if code == 0 {
		return mount.RawCodeOK, nil
	}
	return rawCodeFromOutput(output, code), nil
}

// Unmount implements Provider.
func (p *CLIProvider) Unmount(ctx context.Context, path string) error {
	logger.Debug("executing unmount", logger.KeyPath, path)
	output, code, err := p.run(ctx, "umount", path)
	if err != nil {
		return fmt.Errorf("failed to run umount: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("umount %s exited %d: %s", path, code, strings.TrimSpace(output))
	}
	return nil
}

// mountCommand builds the platform command line for a request.
func (p *CLIProvider) mountCommand(req Request) (string, []string, error) {
	u, err := url.Parse(req.ResourceURI)
	if err != nil || u.Hostname() == "" {
		return "", nil, fmt.Errorf("%w: %q", mount.ErrMalformedURI, req.ResourceURI)
	}

	switch strings.ToLower(u.Scheme) {
	case "smb", "cifs":
		return p.smbCommand(req, u)
	case "nfs":
		return p.nfsCommand(u, req.TargetPath)
	default:
		return "", nil, fmt.Errorf("%w: unsupported scheme %q", mount.ErrMalformedURI, u.Scheme)
	}
}

func (p *CLIProvider) smbCommand(req Request, u *url.URL) (string, []string, error) {
	sharePath := strings.TrimPrefix(u.Path, "/")
	if sharePath == "" {
		return "", nil, fmt.Errorf("%w: %q has no share component", mount.ErrMalformedURI, req.ResourceURI)
	}

	if p.goos == "darwin" {
		// mount_smbfs //[domain;]user[:password]@host/share target
		location := u.Hostname()
		if port := u.Port(); port != "" {
			location += ":" + port
		}
		spec := "//"
		switch req.AuthKind {
		case mount.AuthPassword:
			user := req.Username
			if req.Domain != "" {
				user = req.Domain + ";" + user
			}
			spec += url.User(user).String() + ":" + url.QueryEscape(req.Password) + "@"
		case mount.AuthGuest:
			spec += "guest@"
		}
		spec += location + "/" + sharePath

		args := []string{}
		if req.AuthKind != mount.AuthPassword {
			// Kerberos and guest mounts must never block on a
			// password prompt.
			args = append(args, "-N")
		}
		args = append(args, spec, req.TargetPath)
		return "mount_smbfs", args, nil
	}

	// linux: mount -t cifs //host/share target -o <options>
	source := "//" + u.Hostname() + "/" + sharePath
	opts := []string{}
	switch req.AuthKind {
	case mount.AuthPassword:
		opts = append(opts, "username="+req.Username, "password="+req.Password)
		if req.Domain != "" {
			opts = append(opts, "domain="+req.Domain)
		}
	case mount.AuthKerberos:
		opts = append(opts, "sec=krb5", "cruid="+req.Username)
	case mount.AuthGuest:
		opts = append(opts, "guest")
	}
	return "mount", []string{"-t", "cifs", source, req.TargetPath, "-o", strings.Join(opts, ",")}, nil
}

func (p *CLIProvider) nfsCommand(u *url.URL, target string) (string, []string, error) {
	if u.Path == "" || u.Path == "/" {
		return "", nil, fmt.Errorf("%w: %q has no export path", mount.ErrMalformedURI, u.String())
	}
	source := u.Hostname() + ":" + u.Path
	return "mount", []string{"-t", "nfs", source, target}, nil
}

// outputPatterns maps provider diagnostics to raw outcome codes. The text
// beats the exit code because mount tools collapse unrelated failures into
// a handful of exit statuses.
var outputPatterns = []struct {
	needle string
	code   int
}{
	{"authentication error", 80},
	{"permission denied", 13},
	{"operation timed out", 60},
	{"connection timed out", 60},
	{"host is down", 64},
	{"no route to host", 65},
	{"network is unreachable", 65},
	{"could not resolve", 65},
	{"unknown host", 65},
	{"file exists", 17},
	{"already mounted", 17},
	{"no such file or directory", 2},
	{"share not found", -6003},
	{"bad network name", -6003},
}

// rawCodeFromOutput derives the raw outcome code for a failed mount from
// its diagnostics, falling back to the process exit code.
func rawCodeFromOutput(output string, exitCode int) int {
	lower := strings.ToLower(output)
	for _, p := range outputPatterns {
		if strings.Contains(lower, p.needle) {
			return p.code
		}
	}
	return exitCode
}
