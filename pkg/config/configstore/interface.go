package configstore

// ConfigStore loads a snapshot spec document into out.
// out is usually a *spec.Spec, which decodes itself from YAML.
type ConfigStore interface {
	Load(out any) error
}
