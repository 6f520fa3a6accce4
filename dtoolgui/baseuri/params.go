package baseuri

import (
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
)

// S3Params are the per-endpoint S3 settings
type S3Params struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	DatasetPrefix   string
}

// SMBParams are the per-endpoint SMB settings
type SMBParams struct {
	ServerName  string
	ServerPort  string
	ServiceName string
	Path        string
	Domain      string
	Username    string
	Password    string
}

// S3Params reads the parameters of the S3 endpoint name from the dtool config
func (r *Registry) S3Params(name string) S3Params {
	get := func(prefix string) string {
		return r.store.GetDefault(prefix+name, "")
	}
	return S3Params{
		Endpoint:        get(config.PrefixS3Endpoint),
		AccessKeyID:     get(config.PrefixS3AccessKeyID),
		SecretAccessKey: get(config.PrefixS3SecretAccessKey),
		DatasetPrefix:   r.s3DatasetPrefix(name),
	}
}

// s3DatasetPrefix is the global DTOOL_S3_DATASET_PREFIX; configs written by
// older clients may only carry a per-bucket key.
func (r *Registry) s3DatasetPrefix(name string) string {
	if prefix, ok := r.store.Get(config.KeyS3DatasetPrefix); ok {
		return prefix
	}
	return r.store.GetDefault(config.PrefixS3DatasetPrefix+name, "")
}

// SetS3Params writes all parameters of the S3 endpoint name in one config update.
// The dataset prefix is shared by all buckets and is only written when set.
func (r *Registry) SetS3Params(name string, p S3Params) error {
	if err := common.ValidateRequiredString(name, "endpoint name"); err != nil {
		return err
	}
	values := map[string]string{
		config.PrefixS3Endpoint + name:        p.Endpoint,
		config.PrefixS3AccessKeyID + name:     p.AccessKeyID,
		config.PrefixS3SecretAccessKey + name: p.SecretAccessKey,
	}
	if p.DatasetPrefix != "" {
		values[config.KeyS3DatasetPrefix] = p.DatasetPrefix
	}
	return r.store.SetValues(values)
}

// SMBParams reads the parameters of the SMB endpoint name from the dtool config
func (r *Registry) SMBParams(name string) SMBParams {
	get := func(prefix string) string {
		return r.store.GetDefault(prefix+name, "")
	}
	return SMBParams{
		ServerName:  get(config.PrefixSMBServerName),
		ServerPort:  get(config.PrefixSMBServerPort),
		ServiceName: get(config.PrefixSMBServiceName),
		Path:        get(config.PrefixSMBPath),
		Domain:      get(config.PrefixSMBDomain),
		Username:    get(config.PrefixSMBUsername),
		Password:    get(config.PrefixSMBPassword),
	}
}

// SetSMBParams writes all parameters of the SMB endpoint name in one config update
func (r *Registry) SetSMBParams(name string, p SMBParams) error {
	if err := common.ValidateRequiredString(name, "endpoint name"); err != nil {
		return err
	}
	return r.store.SetValues(map[string]string{
		config.PrefixSMBServerName + name:  p.ServerName,
		config.PrefixSMBServerPort + name:  p.ServerPort,
		config.PrefixSMBServiceName + name: p.ServiceName,
		config.PrefixSMBPath + name:        p.Path,
		config.PrefixSMBDomain + name:      p.Domain,
		config.PrefixSMBUsername + name:    p.Username,
		config.PrefixSMBPassword + name:    p.Password,
	})
}
