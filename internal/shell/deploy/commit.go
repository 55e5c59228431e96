package deploy

import (
	"context"

	"github.com/artpar/launchpad/internal/core/command"
)

// Commit stages and commits local changes interactively. Without a local
// repository one is initialized, the push remote added when one is configured
// and the tree staged first.
func (r *Runner) Commit(ctx context.Context) error {
	res, err := r.localRun(ctx, "git rev-parse --git-dir", command.Options{Quiet: true})
	if err != nil {
		return err
	}

	if res.Failed() {
		r.banner("No git repo detected in this directory")
		r.say("Don't worry, we'll create one for you")

		steps := []string{"git init"}
		if r.settings.GitPushURL != "" {
			steps = append(steps, command.Join("git", "remote", "add", r.settings.GitRemote, r.settings.GitPushURL))
		} else {
			r.warn("no push URL configured; add a remote before deploying", "remote", r.settings.GitRemote)
		}
		steps = append(steps, "git add .")
		for _, step := range steps {
			res, err := r.localRun(ctx, step, command.Options{})
			if err != nil {
				return err
			}
			if res.Failed() {
				r.warn("repository setup step failed", "command", step, "exit_code", res.ExitCode)
			}
		}
	}

	res, err = r.localRun(ctx, "git add -p && git commit -a", command.Options{Interactive: true})
	if err != nil {
		return err
	}
	return mustSucceed(res, "Commit failed")
}
