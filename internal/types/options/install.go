// internal/types/options/install.go
package options

type InstallOptions struct {
	ImageTag string // tag or full reference overriding the configured image
	DryRun   bool
}

func NewInstallOptions(opts ...InstallOption) InstallOptions {
	options := InstallOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type InstallOption func(*InstallOptions)

func WithInstallImageTag(tag string) InstallOption {
	return func(o *InstallOptions) {
		o.ImageTag = tag
	}
}

func WithInstallDryRun(dryRun bool) InstallOption {
	return func(o *InstallOptions) {
		o.DryRun = dryRun
	}
}
