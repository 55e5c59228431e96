package compose

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses Docker Compose YAML into a Stack named projectName.
// Input: raw YAML string
// Output: Stack with services sorted by name, or error
func Parse(yamlContent, projectName string) (*Stack, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent, projectName)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	stack := &Stack{
		Name:     project.Name,
		Services: make([]Service, 0, len(project.Services)),
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		stack.Services = append(stack.Services, converted)
	}
	sort.Slice(stack.Services, func(i, j int) bool {
		return stack.Services[i].Name < stack.Services[j].Name
	})

	if err := detectCircularDependencies(stack.Services); err != nil {
		return nil, err
	}

	if err := validatePorts(stack.Services); err != nil {
		return nil, err
	}

	for name := range project.Volumes {
		stack.Volumes = append(stack.Volumes, name)
	}
	sort.Strings(stack.Volumes)

	return stack, nil
}

// loadProject loads a compose project using compose-go without touching the filesystem.
func loadProject(yamlContent, projectName string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, fieldError("", "", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, fieldError("", "", ErrInvalidYAML)
	}

	if projectName == "" {
		projectName = "app"
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(loader.NormalizeProjectName(projectName), true)
		opts.SkipValidation = false
		// Variables and env files are resolved on the target, not on this machine.
		opts.SkipInterpolation = true
		opts.SkipResolveEnvironment = true
		// Paths are relative to the remote checkout.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, fieldError("", "", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, fieldError("", "", ErrServiceNoImage)
		}
		return nil, fieldError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:      svc.Name,
		Image:     svc.Image,
		DependsOn: make([]string, 0, len(svc.DependsOn)),
	}

	if svc.Build != nil {
		service.Build = &BuildConfig{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
		}
	}

	if service.Image == "" && service.Build == nil {
		return Service{}, fieldError("services."+svc.Name, "", ErrServiceNoImage)
	}

	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	sort.Strings(service.DependsOn)

	return service, nil
}

// detectCircularDependencies detects circular dependencies in service dependencies.
func detectCircularDependencies(services []Service) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates all port configurations.
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
			if port.Target == 0 {
				return fieldError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return fieldError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return fieldError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}

// =============================================================================
// Summary
// =============================================================================

// Summary renders one line per service, e.g.
//
//	web: image nginx:latest, ports 8080->80/tcp
func Summary(stack *Stack) []string {
	lines := make([]string, 0, len(stack.Services))
	for _, svc := range stack.Services {
		source := "image " + svc.Image
		if svc.Image == "" && svc.Build != nil {
			source = "build " + svc.Build.Context
		}

		line := svc.Name + ": " + source
		if ports := formatPorts(svc.Ports); ports != "" {
			line += ", ports " + ports
		}
		lines = append(lines, line)
	}
	return lines
}

func formatPorts(ports []Port) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.FormatUint(uint64(p.Target), 10))
		if err != nil {
			continue
		}
		if p.Published == 0 {
			parts = append(parts, string(port))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d->%s", p.Published, port))
	}
	return strings.Join(parts, " ")
}

// ProjectName returns the name compose gives a project in dir when no name is set.
func ProjectName(dir string) string {
	name := loader.NormalizeProjectName(filepath.Base(filepath.Clean(dir)))
	if name == "" {
		return "app"
	}
	return name
}
