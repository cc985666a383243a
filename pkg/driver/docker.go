package driver

import (
	"fmt"

	"github.com/andrej220/shotgun/pkg/plan"
)

const dockerExecTemplate = "docker exec \\\n$(docker ps -q \\\n  --filter 'name=%s' \\\n  --format '{{.Names}}') %s"

type dockerFields struct {
	Containers []string `validate:"min=1,dive,required"`
}

// DockerCommand is a Command whose list is the cross product of containers
// and commands, container major.
type DockerCommand struct {
	*Command
	containers []string
}

func NewDockerCommand(task plan.Task, conf Conf, env Env) (*DockerCommand, error) {
	base, err := newBase(task, conf, env)
	if err != nil {
		return nil, err
	}
	containers, err := stringList(task.Object, "containers")
	if err != nil {
		return nil, err
	}
	if err := validateFields("docker_command", dockerFields{Containers: containers}); err != nil {
		return nil, err
	}
	cmds, err := stringList(task.Object, "command")
	if err != nil {
		return nil, err
	}
	toFile, err := stringField(task.Object, "to_file")
	if err != nil {
		return nil, err
	}
	c, err := newCommand(base, DockerExec(containers, cmds), toFile)
	if err != nil {
		return nil, err
	}
	return &DockerCommand{Command: c, containers: containers}, nil
}

func (d *DockerCommand) Containers() []string { return d.containers }

// DockerExec wraps each command to run inside the container whose name
// matches the filter.
func DockerExec(containers, cmds []string) []string {
	out := make([]string, 0, len(containers)*len(cmds))
	for _, container := range containers {
		for _, cmd := range cmds {
			out = append(out, fmt.Sprintf(dockerExecTemplate, container, cmd))
		}
	}
	return out
}
