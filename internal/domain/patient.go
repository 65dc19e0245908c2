package domain

import (
	"encoding/json"
	"math"
	"strings"
)

// BaselineScoreField is the baseline global health status covariate the
// decline threshold is anchored to.
const BaselineScoreField = "hn3_dv_c30_ghs"

// PatientRecord is the request payload: one patient, demographic and
// clinical covariates plus the EORTC QLQ-C30 and QLQ-H&N35 sub-scale
// scores. Negative numbers mark a value as missing.
type PatientRecord struct {
	Age                 int     `json:"hn1_dv_age_cons"`
	Sex                 int     `json:"hn1_na8_cb_sex"`
	ICDGroup            string  `json:"hn1_icd_group_conf" binding:"max=128"`
	TNMStage            int     `json:"hn1_tnm_stage_best"`
	EducationLevel      int     `json:"hn1_a7a_ay_education_level"`
	MaritalStatus       string  `json:"hn1_a5_ay_marital_status" binding:"max=128"`
	IMD10Quintile       int     `json:"hn1_imd10quint"`
	HouseholdIncome     int     `json:"hn1_dv_a21_ay_hhold_income"`
	ComorbidityIndex    int     `json:"hn1_nb4_cb_comorb_index"`
	HPVStatus           string  `json:"hn1_nb9a_cb_hpv_status" binding:"max=128"`
	Surgery             int     `json:"hn2_surgery"`
	Chemotherapy        int     `json:"hn2_chemotherapy"`
	Radiotherapy        int     `json:"hn2_radiotherapy"`
	Tobacco             string  `json:"hn1_a8_ay_tobacco" binding:"max=128"`
	BMI                 float64 `json:"hn1_dv_bmi"`
	AlcoholUnitsPerWeek float64 `json:"hn1_dv_total_wk"`

	C30RoleFunction      float64 `json:"hn3_dv_c30_role_func"`
	C30PhysicalFunction  float64 `json:"hn3_dv_c30_phys_func"`
	C30EmotionalFunction float64 `json:"hn3_dv_c30_emot_func"`
	C30CognitiveFunction float64 `json:"hn3_dv_c30_cog_func"`
	C30SocialFunction    float64 `json:"hn3_dv_c30_soc_func"`
	C30Fatigue           float64 `json:"hn3_dv_c30_fatigue"`
	C30Nausea            float64 `json:"hn3_dv_c30_nausea"`
	C30Pain              float64 `json:"hn3_dv_c30_pain"`
	C30Dyspnoea          float64 `json:"hn3_dv_c30_dyspnoea"`
	C30Insomnia          float64 `json:"hn3_dv_c30_insomnia"`
	C30Appetite          float64 `json:"hn3_dv_c30_appetite"`
	C30Constipation      float64 `json:"hn3_dv_c30_constipation"`
	C30Diarrhoea         float64 `json:"hn3_dv_c30_diarrhoea"`
	C30GlobalHealth      float64 `json:"hn3_dv_c30_ghs"`

	HN35Pain          float64 `json:"hn3_dv_hn35_pain"`
	HN35Speech        float64 `json:"hn3_dv_hn35_speech"`
	HN35Sexuality     float64 `json:"hn3_dv_hn35_sex"`
	HN35DryMouth      float64 `json:"hn3_dv_hn35_drymouth"`
	HN35FeltIll       float64 `json:"hn3_dv_hn35_ill"`
	HN35Swallowing    float64 `json:"hn3_dv_hn35_swallow"`
	HN35SocialEating  float64 `json:"hn3_dv_hn35_soceat"`
	HN35Teeth         float64 `json:"hn3_dv_hn35_teeth"`
	HN35StickySaliva  float64 `json:"hn3_dv_hn35_saliva"`
	HN35Senses        float64 `json:"hn3_dv_hn35_senses"`
	HN35SocialContact float64 `json:"hn3_dv_hn35_soccon"`
	HN35OpeningMouth  float64 `json:"hn3_dv_hn35_openmouth"`
	HN35Coughing      float64 `json:"hn3_dv_hn35_cough"`
}

// DefaultPatientRecord returns the documented default payload. Every
// quality-of-life score defaults to the missing sentinel.
func DefaultPatientRecord() PatientRecord {
	return PatientRecord{
		Age:              42,
		Sex:              1,
		ICDGroup:         "1 - oral cavity",
		TNMStage:         1,
		EducationLevel:   3,
		MaritalStatus:    "4 - married",
		IMD10Quintile:    0,
		HouseholdIncome:  5,
		ComorbidityIndex: 1,
		HPVStatus:        "not obtained",
		Surgery:          1,
		Chemotherapy:     0,
		Radiotherapy:     1,
		Tobacco:          "3 - never",
		BMI:              25,

		C30RoleFunction:      -1,
		C30PhysicalFunction:  -1,
		C30EmotionalFunction: -1,
		C30CognitiveFunction: -1,
		C30SocialFunction:    -1,
		C30Fatigue:           -1,
		C30Nausea:            -1,
		C30Pain:              -1,
		C30Dyspnoea:          -1,
		C30Insomnia:          -1,
		C30Appetite:          -1,
		C30Constipation:      -1,
		C30Diarrhoea:         -1,
		C30GlobalHealth:      -1,

		HN35Pain:          -1,
		HN35Speech:        -1,
		HN35Sexuality:     -1,
		HN35DryMouth:      -1,
		HN35FeltIll:       -1,
		HN35Swallowing:    -1,
		HN35SocialEating:  -1,
		HN35Teeth:         -1,
		HN35StickySaliva:  -1,
		HN35Senses:        -1,
		HN35SocialContact: -1,
		HN35OpeningMouth:  -1,
		HN35Coughing:      -1,
	}
}

// UnmarshalJSON decodes on top of the default payload so that omitted
// fields keep their schema defaults.
func (p *PatientRecord) UnmarshalJSON(data []byte) error {
	type plain PatientRecord
	rec := plain(DefaultPatientRecord())
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*p = PatientRecord(rec)
	return nil
}

type patientField struct {
	name  string
	value Value
}

func (p *PatientRecord) fields() []patientField {
	i := func(name string, v int) patientField { return patientField{name, NumericValue(float64(v))} }
	f := func(name string, v float64) patientField { return patientField{name, NumericValue(v)} }
	s := func(name string, v string) patientField { return patientField{name, CategoricalValue(v)} }

	return []patientField{
		i("hn1_dv_age_cons", p.Age),
		i("hn1_na8_cb_sex", p.Sex),
		s("hn1_icd_group_conf", p.ICDGroup),
		i("hn1_tnm_stage_best", p.TNMStage),
		i("hn1_a7a_ay_education_level", p.EducationLevel),
		s("hn1_a5_ay_marital_status", p.MaritalStatus),
		i("hn1_imd10quint", p.IMD10Quintile),
		i("hn1_dv_a21_ay_hhold_income", p.HouseholdIncome),
		i("hn1_nb4_cb_comorb_index", p.ComorbidityIndex),
		s("hn1_nb9a_cb_hpv_status", p.HPVStatus),
		i("hn2_surgery", p.Surgery),
		i("hn2_chemotherapy", p.Chemotherapy),
		i("hn2_radiotherapy", p.Radiotherapy),
		s("hn1_a8_ay_tobacco", p.Tobacco),
		f("hn1_dv_bmi", p.BMI),
		f("hn1_dv_total_wk", p.AlcoholUnitsPerWeek),

		f("hn3_dv_c30_role_func", p.C30RoleFunction),
		f("hn3_dv_c30_phys_func", p.C30PhysicalFunction),
		f("hn3_dv_c30_emot_func", p.C30EmotionalFunction),
		f("hn3_dv_c30_cog_func", p.C30CognitiveFunction),
		f("hn3_dv_c30_soc_func", p.C30SocialFunction),
		f("hn3_dv_c30_fatigue", p.C30Fatigue),
		f("hn3_dv_c30_nausea", p.C30Nausea),
		f("hn3_dv_c30_pain", p.C30Pain),
		f("hn3_dv_c30_dyspnoea", p.C30Dyspnoea),
		f("hn3_dv_c30_insomnia", p.C30Insomnia),
		f("hn3_dv_c30_appetite", p.C30Appetite),
		f("hn3_dv_c30_constipation", p.C30Constipation),
		f("hn3_dv_c30_diarrhoea", p.C30Diarrhoea),
		f("hn3_dv_c30_ghs", p.C30GlobalHealth),

		f("hn3_dv_hn35_pain", p.HN35Pain),
		f("hn3_dv_hn35_speech", p.HN35Speech),
		f("hn3_dv_hn35_sex", p.HN35Sexuality),
		f("hn3_dv_hn35_drymouth", p.HN35DryMouth),
		f("hn3_dv_hn35_ill", p.HN35FeltIll),
		f("hn3_dv_hn35_swallow", p.HN35Swallowing),
		f("hn3_dv_hn35_soceat", p.HN35SocialEating),
		f("hn3_dv_hn35_teeth", p.HN35Teeth),
		f("hn3_dv_hn35_saliva", p.HN35StickySaliva),
		f("hn3_dv_hn35_senses", p.HN35Senses),
		f("hn3_dv_hn35_soccon", p.HN35SocialContact),
		f("hn3_dv_hn35_openmouth", p.HN35OpeningMouth),
		f("hn3_dv_hn35_cough", p.HN35Coughing),
	}
}

// qolScaleMax is the upper bound of every EORTC linearly transformed scale.
const qolScaleMax = 100

// Validate checks value ranges. Negative numbers are accepted as missing
// markers; only values that cannot be produced by the questionnaires or
// the clinical coding are rejected.
func (p *PatientRecord) Validate() error {
	var errs ValidationErrors
	for _, fld := range p.fields() {
		v := fld.value
		if v.Kind == Categorical {
			continue
		}
		if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
			errs = append(errs, NewValidationError(fld.name, "must be a finite number", v.Num))
			continue
		}
		if strings.HasPrefix(fld.name, "hn3_") && v.Num > qolScaleMax {
			errs = append(errs, NewValidationError(fld.name, "quality-of-life scores range from 0 to 100", v.Num))
		}
	}
	if p.Age > 120 {
		errs = append(errs, NewValidationError("hn1_dv_age_cons", "age out of range", p.Age))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToRecord converts the payload into a single-row record at index 0.
func (p *PatientRecord) ToRecord() Record {
	rec := NewRecord()
	for _, fld := range p.fields() {
		rec.Set(fld.name, fld.value)
	}
	return rec
}

// FieldNames lists the request covariates in schema order.
func (p *PatientRecord) FieldNames() []string {
	fields := p.fields()
	names := make([]string, len(fields))
	for i, fld := range fields {
		names[i] = fld.name
	}
	return names
}
