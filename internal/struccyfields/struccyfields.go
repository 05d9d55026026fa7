// FilePath: internal/struccyfields/struccyfields.go
package struccyfields

import (
	"github.com/itsatony/struccy"

	"github.com/residential-power/outagewatch/internal/models"
)

// roleSet a caller presents when filtering readxs-tagged fields. A plain
// X-API-Key caller gets "owner"; a valid Keycloak operator token adds "admin".
func roleSet(isOperator bool) []string {
	if isOperator {
		return []string{"owner", "admin"}
	}
	return []string{"owner"}
}

// FilterSensor redacts admin-only fields (frozen_*, comment) from a Sensor
// for callers without an operator token.
func FilterSensor(s *models.Sensor, isOperator bool) (*models.Sensor, error) {
	roles := roleSet(isOperator)
	m, err := struccy.StructToMapFieldsWithReadXS(s, roles)
	if err != nil {
		return nil, err
	}
	filtered := &models.Sensor{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, m, roles); err != nil {
		return nil, err
	}
	return filtered, nil
}

// FilterSensors applies FilterSensor to a slice, skipping (and logging via
// the caller) any sensor that fails to filter rather than aborting the list.
func FilterSensors(sensors []*models.Sensor, isOperator bool) ([]*models.Sensor, []error) {
	out := make([]*models.Sensor, 0, len(sensors))
	var errs []error
	for _, s := range sensors {
		f, err := FilterSensor(s, isOperator)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, f)
	}
	return out, errs
}

// FilterJob redacts admin-only fields (id, payload, last_error) from an
// AdminJob for callers without an operator token.
func FilterJob(j *models.AdminJob, isOperator bool) (*models.AdminJob, error) {
	roles := roleSet(isOperator)
	m, err := struccy.StructToMapFieldsWithReadXS(j, roles)
	if err != nil {
		return nil, err
	}
	filtered := &models.AdminJob{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, m, roles); err != nil {
		return nil, err
	}
	return filtered, nil
}
