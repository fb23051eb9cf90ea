package service

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerController controls services that run as Docker containers. A
// service name maps to a container name; "enabled" means a container
// with that name exists, "active" means it is running.
type DockerController struct{}

// NewDockerController returns a Docker-API-backed controller.
func NewDockerController() *DockerController {
	return &DockerController{}
}

func (c *DockerController) getClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// IsDockerAvailable checks if the Docker daemon is reachable.
func (c *DockerController) IsDockerAvailable(ctx context.Context) bool {
	cli, err := c.getClient()
	if err != nil {
		return false
	}
	defer func() { _ = cli.Close() }()

	_, err = cli.Ping(ctx)
	return err == nil
}

// IsEnabled reports whether a container with the given name exists.
func (c *DockerController) IsEnabled(name string) bool {
	cli, err := c.getClient()
	if err != nil {
		return false
	}
	defer func() { _ = cli.Close() }()

	_, err = cli.ContainerInspect(context.Background(), name)
	return err == nil
}

// Restart restarts the named container with the daemon's default stop
// timeout.
func (c *DockerController) Restart(name string) error {
	cli, err := c.getClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	return cli.ContainerRestart(context.Background(), name, container.StopOptions{})
}

// IsActive reports whether the named container is running.
func (c *DockerController) IsActive(name string) bool {
	cli, err := c.getClient()
	if err != nil {
		return false
	}
	defer func() { _ = cli.Close() }()

	inspect, err := cli.ContainerInspect(context.Background(), name)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Running
}
