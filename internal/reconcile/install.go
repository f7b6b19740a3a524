package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
)

const notInstallingMessage = "Server is not being installed or reinstalled at the moment"

// Task statuses ending an installation without success.
var terminalTaskStatuses = []string{"cancelled", "customerError", "ovhError"}

// Install starts the installation of a template on a dedicated server.
type Install struct {
	Server                string
	Template              string
	Hostname              string
	SSHKeyName            string
	UseDistribKernel      bool
	PostInstallScriptLink string
	// Wait polls the installation until it is done once it has been started.
	Wait bool
}

type installDetails struct {
	Language                   string `json:"language"`
	CustomHostname             string `json:"customHostname"`
	SSHKeyName                 string `json:"sshKeyName,omitempty"`
	UseDistribKernel           bool   `json:"useDistribKernel,omitempty"`
	PostInstallationScriptLink string `json:"postInstallationScriptLink,omitempty"`
}

type installStart struct {
	TemplateName string         `json:"templateName"`
	Details      installDetails `json:"details"`
}

type installStep struct {
	Comment string `json:"comment"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

type installProgress struct {
	ElapsedTime int           `json:"elapsedTime"`
	Progress    []installStep `json:"progress"`
	Message     string        `json:"message"`
}

func (p installProgress) inProgress() bool {
	for _, s := range p.Progress {
		if s.Status == "doing" || s.Status == "todo" {
			return true
		}
	}
	return false
}

// current describes the step being executed.
func (p installProgress) current() string {
	if p.Message != "" {
		return p.Message
	}
	for _, s := range p.Progress {
		if s.Status == "doing" {
			return s.Comment
		}
	}
	return ""
}

type serverTask struct {
	TaskID   int64  `json:"taskId"`
	Function string `json:"function"`
	Status   string `json:"status"`
	Comment  string `json:"comment"`
}

func (i Install) Kind() Kind { return KindInstall }

func (i Install) Validate() error {
	if i.Server == "" {
		return required(KindInstall, "server")
	}
	if i.Template == "" {
		return required(KindInstall, "template")
	}
	if i.Hostname == "" {
		return required(KindInstall, "hostname")
	}
	return nil
}

// fetchInstallProgress returns the progress of the running installation. A
// server without one reports notInstallingMessage.
func fetchInstallProgress(ctx context.Context, gw gateway.Gateway, server string) (installProgress, error) {
	var p installProgress
	err := gw.Get(ctx, serverPath(server, "install", "status"), nil, &p)
	if gateway.IsNotFound(err) {
		return installProgress{Message: notInstallingMessage}, nil
	}
	return p, err
}

func (i Install) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = i.Server
	gw := r.engine.gw

	var compatible map[string][]string
	if err := gw.Get(ctx, serverPath(i.Server, "install", "compatibleTemplates"), nil, &compatible); err != nil {
		return Outcome{}, err
	}
	found := false
	for _, family := range compatible {
		if slices.Contains(family, i.Template) {
			found = true
			break
		}
	}
	if !found {
		return Outcome{}, &ValidationError{Kind: KindInstall, Field: "template", Reason: fmt.Sprintf("%s doesn't exist in compatibles templates", i.Template)}
	}

	if i.SSHKeyName != "" {
		var keys []string
		if err := gw.Get(ctx, gateway.Path("me", "sshKey"), nil, &keys); err != nil {
			return Outcome{}, err
		}
		if !slices.Contains(keys, i.SSHKeyName) {
			return Outcome{}, &ValidationError{Kind: KindInstall, Field: "sshKeyName", Reason: fmt.Sprintf("%s doesn't exist in public SSH keys", i.SSHKeyName)}
		}
	}

	progress, err := fetchInstallProgress(ctx, gw, i.Server)
	if err != nil {
		return Outcome{}, err
	}
	if progress.inProgress() {
		if err := r.decide(i.Server, Decision{Action: NoopMatch}); err != nil {
			return Outcome{}, err
		}
		return unchanged(fmt.Sprintf("Installation already in progress on %s: %s", i.Server, progress.current()), progress), nil
	}
	if err := r.decide(i.Server, Decision{Action: Create}); err != nil {
		return Outcome{}, err
	}

	body := installStart{
		TemplateName: i.Template,
		Details: installDetails{
			Language:                   "en",
			CustomHostname:             i.Hostname,
			SSHKeyName:                 i.SSHKeyName,
			UseDistribKernel:           i.UseDistribKernel,
			PostInstallationScriptLink: i.PostInstallScriptLink,
		},
	}
	var task serverTask
	if err := r.post(ctx, "start install", serverPath(i.Server, "install", "start"), body, &task); err != nil {
		return Outcome{}, err
	}

	if !i.Wait || r.simulate {
		return r.changed(fmt.Sprintf("Installation in progress on %s !", i.Server), task), nil
	}

	status, err := waitInstall(ctx, r, i.Server)
	if err != nil {
		return Outcome{}, err
	}
	return r.changed(fmt.Sprintf("Installation done on %s: %s", i.Server, status), task), nil
}

// InstallStatus waits for the latest installation task of a server to finish.
type InstallStatus struct {
	Server string
}

func (s InstallStatus) Kind() Kind { return KindInstallStatus }

func (s InstallStatus) Validate() error {
	if s.Server == "" {
		return required(KindInstallStatus, "server")
	}
	return nil
}

func (s InstallStatus) reconcile(ctx context.Context, r *run) (Outcome, error) {
	r.target = s.Server
	status, err := waitInstall(ctx, r, s.Server)
	if err != nil {
		return Outcome{}, err
	}
	return unchanged(status, nil), nil
}

// latestInstallTask returns the most recent reinstallServer task.
func latestInstallTask(ctx context.Context, gw gateway.Gateway, server string) (serverTask, error) {
	var ids []int64
	query := url.Values{"function": {"reinstallServer"}}
	if err := gw.Get(ctx, serverPath(server, "task"), query, &ids); err != nil {
		return serverTask{}, err
	}
	if len(ids) == 0 {
		return serverTask{}, fmt.Errorf("no installation task found on %s", server)
	}

	var task serverTask
	id := strconv.FormatInt(slices.Max(ids), 10)
	if err := gw.Get(ctx, serverPath(server, "task", id), nil, &task); err != nil {
		return serverTask{}, err
	}
	return task, nil
}

// waitInstall polls the installation task until it is done and returns its
// final status, followed by the current step when one is reported.
func waitInstall(ctx context.Context, r *run, server string) (string, error) {
	gw := r.engine.gw
	pr, err := r.poll(ctx, func(ctx context.Context, attempt int) (poll.Status, error) {
		task, err := latestInstallTask(ctx, gw, server)
		if err != nil {
			return poll.Status{}, err
		}
		if strings.Contains(task.Status, "done") {
			return poll.Status{Done: true, Value: task.Status}, nil
		}

		progress, err := fetchInstallProgress(ctx, gw, server)
		if err != nil {
			return poll.Status{}, err
		}
		return poll.Status{
			Terminal: slices.Contains(terminalTaskStatuses, task.Status),
			Value:    task.Status,
			Message:  progress.current(),
		}, nil
	})
	if err != nil {
		return "", err
	}
	if pr.Last.Message == "" {
		return pr.Last.Value, nil
	}
	return fmt.Sprintf("%s: %s", pr.Last.Value, pr.Last.Message), nil
}
