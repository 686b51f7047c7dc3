package validator

import (
	"fmt"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
)

// confDirKeys are the engine configuration keys that name the configuration directory.
var confDirKeys = []string{constants.FlinkKeyConfDir, constants.FlinkKeyLegacyConfDir}

// validateAdditionalConfFiles rejects overrides of the generated flink-conf.yaml.
func validateAdditionalConfFiles(files map[string]string) string {
	if _, ok := files[constants.FileFlinkConf]; ok {
		return fmt.Sprintf("Setting %s in additionalConfFiles is not allowed.", constants.FileFlinkConf)
	}
	return ""
}

// validateConfDir rejects pointing the engine at the operator's reserved directory.
func validateConfDir(conf florkv1.FlinkConf) string {
	for _, key := range confDirKeys {
		if conf[key] == constants.FlorkConfDir {
			return fmt.Sprintf("Directory [%s] cannot be used as key [%s]", constants.FlorkConfDir, key)
		}
	}
	return ""
}

// ValidateFlinkJobSpec returns the first rule violated by spec, or "" when it is admissible.
func ValidateFlinkJobSpec(spec *florkv1.FlinkJobSpec) string {
	if msg := validateAdditionalConfFiles(spec.AdditionalConfFiles); msg != "" {
		return msg
	}
	return validateConfDir(spec.FlinkConf)
}

// ValidateFlinkSessionSpec returns the first rule violated by spec, or "" when it is admissible.
func ValidateFlinkSessionSpec(spec *florkv1.FlinkSessionSpec) string {
	return validateConfDir(spec.FlinkConf)
}
