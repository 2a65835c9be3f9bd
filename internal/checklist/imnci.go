package checklist

import (
	"fmt"

	"imnci-mentorship/internal/domain"
)

// Classification labels, as shown on the paper IMNCI chart booklet.
const (
	CoughSeverePneumonia = "التهاب رئوي حاد أو مرض شديد جدا"
	CoughPneumonia       = "التهاب رئوي"
	CoughNoPneumonia     = "لا يوجد التهاب رئوي: كحة أو نزلة برد"

	DiarrheaSevereDehydration  = "جفاف شديد"
	DiarrheaSomeDehydration    = "بعض الجفاف"
	DiarrheaNoDehydration      = "لا يوجد جفاف"
	DiarrheaSeverePersistent   = "إسهال مستمر شديد"
	DiarrheaPersistent         = "إسهال مستمر"
	DiarrheaDysentery          = "دسنتاريا"
	FeverVerySevere            = "مرض حمي شديد"
	FeverMalaria               = "ملاريا"
	FeverNoMalaria             = "حمى لا توجد ملاريا"
	FeverMeaslesComplicated    = "حصبة مع مضاعفات شديدة"
	FeverMeasles               = "حصبة"
	FeverPneumonia             = "التهاب رئوي"
	EarMastoiditis             = "التهاب العظمة خلف الأذن"
	EarAcute                   = "التهاب أذن حاد"
	EarChronic                 = "التهاب أذن مزمن"
	EarNone                    = "لا يوجد التهاب أذن"
	MalnutritionSAMComplicated = "سوء تغذية حاد شديد مع مضاعفات"
	MalnutritionSAM            = "سوء تغذية حاد شديد بدون مضاعفات"
	MalnutritionMAM            = "سوء تغذية حاد متوسط"
	MalnutritionNone           = "لا يوجد سوء تغذية"
	AnemiaSevere               = "فقر دم شديد"
	Anemia                     = "فقر دم"
	AnemiaNone                 = "لا يوجد فقر دم"
)

// Group keys of the built-in checklist, in step order.
const (
	GroupVitalSigns      = "vitalSigns"
	GroupDangerSigns     = "dangerSigns"
	GroupSymptoms        = "symptoms"
	GroupNutritionAnemia = "nutritionAnemia"
	GroupDecision        = "decision"
	GroupTreatment       = "treatment"
)

var imnci = mustDefinition(imnciGroups())

// IMNCI returns the built-in skills-observation checklist.
func IMNCI() *Definition {
	return imnci
}

func mustDefinition(groups []Group) *Definition {
	d, err := NewDefinition(groups)
	if err != nil {
		panic(fmt.Sprintf("checklist: invalid built-in definition: %v", err))
	}
	return d
}

func effectiveHas(prefix string, labels ...string) Predicate {
	return Predicate{
		Name: fmt.Sprintf("effective(%s) has %v", prefix, labels),
		Fn: func(t domain.AnswerTree) bool {
			return EffectiveContainsAny(t, prefix, labels...)
		},
	}
}

func imnciGroups() []Group {
	return []Group{
		{
			Key: GroupVitalSigns, Label: "العلامات الحيوية", Step: 1, Section: domain.SectionAssessment,
			Subgroups: []Subgroup{{
				Key: "vitalSigns", Label: "قياس العلامات الحيوية", MaxScore: 3,
				Skills: []Skill{
					{Key: "measure_temperature", Label: "قاس درجة الحرارة"},
					{Key: "measure_weight", Label: "قاس الوزن"},
					{Key: "count_breathing", Label: "عد التنفس لمدة دقيقة كاملة"},
				},
			}},
		},
		{
			Key: GroupDangerSigns, Label: "علامات الخطر العامة", Step: 2, Section: domain.SectionAssessment,
			Subgroups: []Subgroup{{
				Key: "dangerSigns", Label: "التحقق من علامات الخطر", MaxScore: 4,
				Skills: []Skill{
					{Key: "ask_drink_breastfeed", Label: "سأل عن عدم القدرة على الشرب أو الرضاعة"},
					{Key: "ask_vomit_everything", Label: "سأل عن التقيؤ المستمر"},
					{Key: "ask_convulsions", Label: "سأل عن التشنجات"},
					{Key: "check_lethargic", Label: "تحقق من الخمول أو فقدان الوعي"},
				},
			}},
		},
		{
			Key: GroupSymptoms, Label: "الأعراض الرئيسية", Step: 3, Section: domain.SectionAssessment,
			Subgroups: []Subgroup{{
				Key: "mainSymptoms", Label: "تقييم وتصنيف الأعراض الرئيسية",
				Symptoms: []SymptomEntry{
					{Prefix: "cough", Label: "الكحة أو صعوبة التنفس",
						Vocabulary: []string{CoughSeverePneumonia, CoughPneumonia, CoughNoPneumonia}},
					{Prefix: "diarrhea", Label: "الإسهال", Multi: true,
						Vocabulary: []string{DiarrheaSevereDehydration, DiarrheaSomeDehydration, DiarrheaNoDehydration,
							DiarrheaSeverePersistent, DiarrheaPersistent, DiarrheaDysentery}},
					{Prefix: "fever", Label: "الحمى", Multi: true,
						Vocabulary: []string{FeverVerySevere, FeverMalaria, FeverNoMalaria,
							FeverMeaslesComplicated, FeverMeasles, FeverPneumonia}},
					{Prefix: "ear", Label: "مشكلة الأذن",
						Vocabulary: []string{EarMastoiditis, EarAcute, EarChronic, EarNone}},
				},
			}},
		},
		{
			Key: GroupNutritionAnemia, Label: "سوء التغذية وفقر الدم", Step: 4, Section: domain.SectionAssessment,
			Subgroups: []Subgroup{
				{
					Key: "malnutrition", Label: "سوء التغذية", MaxScore: 3,
					Skills: []Skill{
						{Key: "check_wasting", Label: "تحقق من الهزال الشديد"},
						{Key: "check_oedema", Label: "تحقق من الورم في القدمين"},
						{Key: ClassifyKey("malnutrition"), Label: "صنف الحالة الغذائية صحيحا"},
					},
					Classification: &ClassificationDomain{Prefix: "malnutrition",
						Vocabulary: []string{MalnutritionSAMComplicated, MalnutritionSAM, MalnutritionMAM, MalnutritionNone}},
				},
				{
					Key: "anemia", Label: "فقر الدم", MaxScore: 2,
					Skills: []Skill{
						{Key: "check_pallor", Label: "تحقق من شحوب الكفين"},
						{Key: ClassifyKey("anemia"), Label: "صنف فقر الدم صحيحا"},
					},
					Classification: &ClassificationDomain{Prefix: "anemia",
						Vocabulary: []string{AnemiaSevere, Anemia, AnemiaNone}},
				},
				{
					Key: "immunization", Label: "التطعيم وفيتامين أ", MaxScore: 2,
					Skills: []Skill{
						{Key: "check_immunization", Label: "راجع بطاقة التطعيم"},
						{Key: "check_vitamin_a", Label: "تحقق من جرعة فيتامين أ", AllowNA: true},
					},
				},
			},
		},
		{
			Key: GroupDecision, Label: "القرار النهائي", Step: 5, Decision: true,
		},
		{
			Key: GroupTreatment, Label: "العلاج والنصح", Step: 6, Section: domain.SectionTreatment,
			Subgroups: []Subgroup{
				{
					Key: "pneumoniaTreatment", Label: "علاج الالتهاب الرئوي",
					Relevant: Predicate{
						Name: "effective cough or fever has pneumonia",
						Fn: func(t domain.AnswerTree) bool {
							return EffectiveContainsAny(t, "cough", CoughPneumonia, CoughSeverePneumonia) ||
								EffectiveContains(t, "fever", FeverPneumonia)
						},
					},
					Skills: []Skill{
						{Key: "give_amoxicillin", Label: "أعطى أموكسيسيلين بالجرعة الصحيحة"},
						{Key: "teach_oral_drug", Label: "علم الأم إعطاء الدواء بالفم"},
						{Key: "pneumonia_first_dose", Label: "أعطى الجرعة الأولى قبل التحويل",
							Relevant: ParseRelevance("finalDecision == 'referral'")},
					},
				},
				{
					Key: "diarrheaTreatment", Label: "علاج الإسهال",
					Relevant: effectiveHas("diarrhea", DiarrheaSevereDehydration, DiarrheaSomeDehydration,
						DiarrheaNoDehydration, DiarrheaSeverePersistent, DiarrheaPersistent, DiarrheaDysentery),
					Skills: []Skill{
						{Key: "give_ors_plan_b", Label: "أعطى محلول الإرواء حسب الخطة ب",
							Relevant: effectiveHas("diarrhea", DiarrheaSomeDehydration)},
						{Key: "give_ors_plan_a", Label: "علم الأم الخطة أ",
							Relevant: effectiveHas("diarrhea", DiarrheaNoDehydration)},
						{Key: "give_zinc", Label: "أعطى الزنك"},
					},
				},
				{
					Key: "malariaTreatment", Label: "علاج الملاريا",
					Relevant: effectiveHas("fever", FeverMalaria),
					Skills: []Skill{
						{Key: "give_antimalarial", Label: "أعطى علاج الملاريا الصحيح"},
						{Key: "give_paracetamol", Label: "أعطى باراسيتامول للحمى العالية", AllowNA: true},
						{Key: "explain_antimalarial_dose", Label: "شرح جرعات علاج الملاريا"},
					},
				},
				{
					Key: "earTreatment", Label: "علاج الأذن",
					Relevant: effectiveHas("ear", EarMastoiditis, EarAcute, EarChronic),
					Skills: []Skill{
						{Key: "give_ear_antibiotic", Label: "أعطى مضاد حيوي للأذن",
							Relevant: effectiveHas("ear", EarAcute, EarMastoiditis)},
						{Key: "dry_ear_wicking", Label: "علم الأم تجفيف الأذن بالفتيل",
							Relevant: effectiveHas("ear", EarAcute, EarChronic)},
					},
				},
				{
					Key: "anemiaTreatment", Label: "علاج فقر الدم",
					Relevant: effectiveHas("anemia", Anemia),
					Skills: []Skill{
						{Key: "give_iron", Label: "أعطى الحديد"},
						{Key: "give_mebendazole", Label: "أعطى ميبيندازول", AllowNA: true},
					},
				},
				{
					Key: "malnutritionTreatment", Label: "التعامل مع سوء التغذية",
					Relevant: effectiveHas("malnutrition", MalnutritionSAM, MalnutritionMAM),
					Skills: []Skill{
						{Key: "refer_nutrition_program", Label: "حول الطفل لبرنامج التغذية"},
						{Key: "assess_feeding", Label: "قيم تغذية الطفل"},
					},
				},
				{
					Key: "counseling", Label: "نصح الأم",
					Skills: []Skill{
						{Key: "counsel_feeding", Label: "نصح الأم بشأن التغذية"},
						{Key: "explain_referral", Label: "شرح سبب التحويل العاجل",
							Relevant: ParseRelevance("finalDecision == 'referral'")},
						{Key: "advise_return_immediately", Label: "نصح الأم متى تعود فورا",
							Relevant: ParseRelevance("finalDecision == 'treatment'")},
						{Key: "follow_up_date", Label: "حدد موعد المتابعة",
							Relevant: ParseRelevance("finalDecision == 'treatment'")},
						{Key: "home_care_advice", Label: "نصح بالرعاية المنزلية",
							Relevant: ParseRelevance("finalDecision == 'home_care'")},
					},
				},
			},
		},
	}
}
