// internal/types/options/update.go
package options

type UpdateOptions struct {
	ImageTag     string // tag or full reference overriding the configured image
	CloneVolumes bool   // mount volumes from the old container instead of by name
	DryRun       bool
}

func NewUpdateOptions(opts ...UpdateOption) UpdateOptions {
	options := UpdateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type UpdateOption func(*UpdateOptions)

func WithUpdateImageTag(tag string) UpdateOption {
	return func(o *UpdateOptions) {
		o.ImageTag = tag
	}
}

func WithUpdateCloneVolumes(clone bool) UpdateOption {
	return func(o *UpdateOptions) {
		o.CloneVolumes = clone
	}
}

func WithUpdateDryRun(dryRun bool) UpdateOption {
	return func(o *UpdateOptions) {
		o.DryRun = dryRun
	}
}
