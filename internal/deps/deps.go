package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// Tool is an external program the pipeline shells out to.
type Tool struct {
	Name       string
	Command    string
	VersionArg string
	Required   bool
	Purpose    string
}

// Result pairs a tool with what was found on this machine.
type Result struct {
	Tool
	Status
}

// Check looks command up in PATH and reads the first line of its version
// output.
func Check(command, versionArg string) Status {
	path, err := exec.LookPath(command)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}
	if versionArg == "" {
		return status
	}

	output, err := exec.Command(path, versionArg).Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}
	return status
}

// CheckFFmpeg checks if the decoder is installed and returns its status
func CheckFFmpeg(command string) Status { return Check(command, "-version") }

// CheckYtDlp checks the page URL resolver.
func CheckYtDlp(command string) Status { return Check(command, "--version") }

func CheckNotifySend() Status { return Check("notify-send", "--version") }

// Tools lists the programs a run with these settings would invoke.
func Tools(decoder, resolver string, resolve, desktopNotifications bool) []Tool {
	tools := []Tool{{
		Name:       "ffmpeg",
		Command:    decoder,
		VersionArg: "-version",
		Required:   true,
		Purpose:    "decodes the source stream to 16 kHz mono PCM",
	}}
	if resolve {
		tools = append(tools, Tool{
			Name:       "yt-dlp",
			Command:    resolver,
			VersionArg: "--version",
			Purpose:    "resolves YouTube and Twitch page URLs",
		})
	}
	if desktopNotifications {
		tools = append(tools, Tool{
			Name:       "notify-send",
			Command:    "notify-send",
			VersionArg: "--version",
			Purpose:    "desktop notifications",
		})
	}
	return tools
}

// CheckAll checks every tool. ok is false when a required tool is missing.
func CheckAll(tools []Tool) (results []Result, ok bool) {
	ok = true
	for _, tool := range tools {
		st := Check(tool.Command, tool.VersionArg)
		if tool.Required && !st.Installed {
			ok = false
		}
		results = append(results, Result{Tool: tool, Status: st})
	}
	return results, ok
}
