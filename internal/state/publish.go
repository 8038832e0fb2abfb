package state

import (
	"fmt"
	"log"
	"os/exec"
)

// Publisher pushes saved state files to a durable remote after a
// successful save. It is invoked explicitly by the pipelines, never from
// inside the state machines.
type Publisher interface {
	Publish(paths ...string) error
}

// NopPublisher is the default Publisher: it does nothing. Used unless
// publish_state is enabled in the config.
type NopPublisher struct{}

func (NopPublisher) Publish(...string) error { return nil }

// GitPublisher commits and pushes changed state files with git. The
// scheduling model (one CI job at a time) is what makes a plain push
// safe here.
type GitPublisher struct {
	Dir    string // repository working tree; "" means current directory
	Remote string // defaults to origin
	Branch string // defaults to main
}

func (g GitPublisher) Publish(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := g.git(append([]string{"add", "--"}, paths...)...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	// diff --staged --quiet exits 1 when there is something to commit.
	if err := g.git("diff", "--staged", "--quiet"); err == nil {
		log.Println("State publish: no changes")
		return nil
	}
	if err := g.git("commit", "-m", "Auto-update bot state"); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	remote, branch := g.Remote, g.Branch
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		branch = "main"
	}
	if err := g.git("push", remote, branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	log.Printf("State publish: pushed %d file(s)", len(paths))
	return nil
}

func (g GitPublisher) git(args ...string) error {
	cmd := exec.Command("git", args...)
	if g.Dir != "" {
		cmd.Dir = g.Dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%v: %s", err, out)
	}
	return nil
}
