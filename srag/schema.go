//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of sragetl.
//
// sragetl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// sragetl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with sragetl. If not, see https://www.gnu.org/licenses/.

package srag

import (
	"errors"
	"strings"

	"github.com/aaronlmathis/sragetl/model"
)

// Package srag declares the hospitalization notification record type of
// the SRAG (severe acute respiratory syndrome) surveillance datasets.
//
// Field declaration order follows the dataset dictionary and is relied on
// by the hooks: a hook only sees fields declared before its own.

// Outcome categories of EVOLUCAO.
const (
	Cure             = "cura"
	Death            = "óbito"
	DeathOtherCauses = "óbito por outras causas"
	Ignored          = "ignorado"
)

// SchemaName names the record type and the default output table.
const SchemaName = "internacao_srag"

func c(code string, v model.Value) model.Choice {
	return model.Choice{Code: code, Value: v}
}

var (
	text    = model.Text
	boolean = model.Bool
	noBool  = model.Null(model.KindBool)
	noText  = model.Null(model.KindText)
)

// yesNo is the 1=yes, 2=no, 9=ignored table shared by most symptom and
// risk factor columns.
func yesNo() []model.Choice {
	return []model.Choice{c("1", boolean(true)), c("2", boolean(false)), c("9", noBool), c("", noBool)}
}

// detected is the table of laboratory result flags: marked or left blank.
func detected() []model.Choice {
	return []model.Choice{c("1", boolean(true)), c("", boolean(false))}
}

// declarations collects fields and the configuration errors raised while
// declaring them.
type declarations struct {
	fields []*model.Field
	errs   []error
}

func name(key string) string { return strings.ToLower(key) }

func (d *declarations) date(key, help string) {
	d.fields = append(d.fields, model.DateField(name(key), key, model.Nullable(), model.Help(help)))
}

func (d *declarations) text(key, help string) {
	d.fields = append(d.fields, model.TextField(name(key), key, model.Nullable(), model.Help(help)))
}

func (d *declarations) integer(key, help string) {
	d.fields = append(d.fields, model.IntegerField(name(key), key, model.Nullable(), model.Help(help)))
}

func (d *declarations) choice(key string, kind model.Kind, help string, choices []model.Choice, opts ...model.FieldOption) {
	opts = append(opts, model.Help(help))
	f, err := model.ChoiceField(name(key), key, kind, choices, opts...)
	if err != nil {
		d.errs = append(d.errs, err)
		return
	}
	d.fields = append(d.fields, f)
}

func (d *declarations) yesNo(key, help string) {
	d.choice(key, model.KindBool, help, yesNo(), model.Nullable())
}

func (d *declarations) detected(key, help string) {
	d.choice(key, model.KindBool, help, detected())
}

func (d *declarations) computed(f *model.Field) {
	d.fields = append(d.fields, f)
}

// NewSchema declares every column of the hospitalization dataset followed
// by the companion and derived attributes.
func NewSchema() (*model.Schema, error) {
	d := &declarations{}

	d.date("DT_NOTIFIC", "data de preenchimento da ficha de notificação")
	d.date("DT_SIN_PRI", "data de 1º sintomas do caso")
	d.date("DT_NASC", "data de nascimento do paciente")
	d.date("DT_UT_DOSE", "data da última dose de vacina contra gripe que o paciente tomou")
	d.date("DT_VAC_MAE", "se a mãe recebeu vacina, qual a data?")
	d.date("DT_DOSEUNI", "se >= 6 meses e <= 8 anos, data da dose única para crianças vacinadas em campanhas de anos anteriores")
	d.date("DT_1_DOSE", "se >= 6 meses e <= 8 anos, data da 1ª dose para crianças vacinadas pela primeira vez")
	d.date("DT_2_DOSE", "se >= 6 meses e <= 8 anos data da 2ª dose para crianças vacinadas pela primeira vez")
	d.date("DT_ANTIVIR", "data em que foi iniciado o tratamento com o antiviral")
	d.date("DT_INTERNA", "data em que o paciente foi hospitalizado")
	d.date("DT_ENTUTI", "data de entrada do paciente na unidade de terapia intensiva (UTI)")
	d.date("DT_SAIDUTI", "data em que o paciente saiu da unidade de terapia intensiva (UTI)")
	d.date("DT_RAIOX", "se realizou RX de tórax, data do exame")
	d.date("DT_COLETA", "data da coleta da amostra para realização do teste diagnóstico")
	d.date("DT_PCR", "data do resultado RT-PCR/outro método por biologia molecular")
	d.date("DT_EVOLUCA", "data da alta ou óbito")
	d.date("DT_ENCERRA", "data do encerramento do caso")
	d.date("DT_DIGITA", "data de inclusão do registro no sistema")
	d.date("DT_VGM", "data em que foi realizada a viagem")
	d.date("DT_RT_VGM", "data em que retornou de viagem")
	d.date("DT_TOMO", "se realizou tomografia, data do exame")
	d.date("DT_RES_AN", "data do resultado do teste antigênico")
	d.date("DT_CO_SOR", "data da coleta do material para diagnóstico por sorologia")
	d.date("DT_RES", "data do resultado do teste sorológico")

	d.choice("EVOLUCAO", model.KindText, "evolução do caso", []model.Choice{
		c("1", text(Cure)), c("2", text(Death)), c("3", text(DeathOtherCauses)), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.integer("SEM_NOT", "semana epidemiológica do preenchimento da ficha de notificação")
	d.integer("SEM_PRI", "semana epidemiológica do início dos sintomas")
	d.text("SG_UF_NOT", "unidade federativa da unidade sentinela que realizou a notificação")
	d.text("ID_REGIONA", "regional de saúde do município que realizou a notificação")
	d.integer("CO_REGIONA", "código da regional de saúde do município que realizou a notificação")
	d.text("ID_MUNICIP", "município da unidade sentinela que realizou a notificação")
	d.integer("CO_MUN_NOT", "código do município da unidade sentinela que realizou a notificação")
	d.text("ID_UNIDADE", "unidade sentinela que realizou o atendimento, coleta de amostra e registro do caso")
	d.integer("CO_UNI_NOT", "código da unidade sentinela que realizou o atendimento")
	d.choice("CS_SEXO", model.KindText, "sexo do paciente", []model.Choice{
		c("M", text("masculino")), c("F", text("feminino")), c("I", text(Ignored)),
	})
	d.integer("NU_IDADE_N", "idade informada pelo paciente quando não se sabe a data de nascimento")
	d.choice("TP_IDADE", model.KindText, "unidade da idade informada em NU_IDADE_N", []model.Choice{
		c("1", text("dia")), c("2", text("mês")), c("3", text("ano")),
	})
	d.text("COD_IDADE", "idade codificada")
	// Code 0 is not in the dictionary but appears in the data.
	d.choice("CS_GESTANT", model.KindBool, "idade gestacional da paciente", []model.Choice{
		c("1", boolean(true)), c("2", boolean(true)), c("3", boolean(true)), c("4", boolean(true)),
		c("5", boolean(false)), c("6", boolean(false)), c("9", noBool), c("0", noBool),
	}, model.Nullable())
	d.computed(model.TextField("cs_gestant_type", "", model.Computed(), model.Default(text("")),
		model.Help("quando cs_gestant for verdadeiro, qual foi o tipo")))
	d.choice("CS_RACA", model.KindText, "cor ou raça declarada pelo paciente", []model.Choice{
		c("1", text("branca")), c("2", text("preta")), c("3", text("amarela")), c("4", text("parda")),
		c("5", text("indígena")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("CS_ETINIA", "nome e código da etnia do paciente, quando indígena")
	d.choice("CS_ESCOL_N", model.KindText, "nível de escolaridade do paciente", []model.Choice{
		c("0", text("Sem escolaridade/Analfabeto")), c("1", text("Fundamental 1º ciclo (1ª a 5ª série)")),
		c("2", text("Fundamental 2º ciclo (6ª a 9ª série)")), c("3", text("Médio (1º ao 3º ano)")),
		c("4", text("Superior")), c("5", text("Não se aplica")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("ID_PAIS", "país de residência do paciente")
	d.text("CO_PAIS", "código do país de residência do paciente")
	d.text("SG_UF", "unidade federativa de residência do paciente")
	d.text("ID_RG_RESI", "regional de saúde do município de residência do paciente")
	d.text("CO_RG_RESI", "código da regional de saúde do município de residência do paciente")
	d.text("ID_MN_RESI", "município de residência do paciente")
	d.integer("CO_MUN_RES", "código do município de residência do paciente")
	d.choice("CS_ZONA", model.KindText, "zona geográfica do endereço de residência do paciente", []model.Choice{
		c("1", text("Urbana")), c("2", text("Rural")), c("3", text("Periurbana")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.yesNo("SURTO_SG", "caso é proveniente de surto de SG?")
	d.yesNo("NOSOCOMIAL", "caso de SRAG com infecção adquirida após internação")
	// Code 3 is not in the dictionary but appears in the data.
	d.choice("AVE_SUINO", model.KindBool, "caso com contato direto com aves ou suínos", []model.Choice{
		c("1", boolean(true)), c("2", boolean(false)), c("3", noBool), c("9", noBool), c("", noBool),
	}, model.Nullable())
	d.yesNo("FEBRE", "paciente apresentou febre?")
	d.yesNo("TOSSE", "paciente apresentou tosse?")
	d.yesNo("GARGANTA", "paciente apresentou dor de garganta?")
	d.yesNo("DISPNEIA", "paciente apresentou dispneia?")
	d.yesNo("DESC_RESP", "paciente apresentou desconforto respiratório?")
	d.yesNo("SATURACAO", "paciente apresentou saturação O2 < 95%?")
	d.yesNo("DIARREIA", "paciente apresentou diarreia?")
	d.yesNo("VOMITO", "paciente apresentou vômito?")
	d.yesNo("OUTRO_SIN", "paciente apresentou outro(s) sintoma(s)?")
	d.text("OUTRO_DES", "outros sinais e sintomas")
	d.yesNo("PUERPERA", "paciente é puérpera ou parturiente?")
	d.choice("FATOR_RISC", model.KindBool, "paciente apresenta algum fator de risco", []model.Choice{
		c("S", boolean(true)), c("N", boolean(false)),
	})
	d.yesNo("CARDIOPATI", "paciente possui doença cardiovascular crônica?")
	d.yesNo("HEMATOLOGI", "paciente possui doença hematológica crônica?")
	d.yesNo("SIND_DOWN", "paciente possui síndrome de Down?")
	d.yesNo("HEPATICA", "paciente possui doença hepática crônica?")
	d.yesNo("ASMA", "paciente possui asma?")
	d.yesNo("DIABETES", "paciente possui diabetes mellitus?")
	d.yesNo("NEUROLOGIC", "paciente possui doença neurológica?")
	d.yesNo("PNEUMOPATI", "paciente possui outra pneumopatia crônica?")
	d.yesNo("IMUNODEPRE", "paciente possui imunodeficiência ou imunodepressão?")
	d.yesNo("RENAL", "paciente possui doença renal crônica?")
	d.yesNo("OBESIDADE", "paciente possui obesidade?")
	d.text("OBES_IMC", "IMC do paciente (se sim no campo obesidade)")
	d.yesNo("OUT_MORBI", "paciente possui outro(s) fator(es) de risco?")
	d.text("MORB_DESC", "outro(s) fator(es) de risco do paciente")
	d.yesNo("VACINA", "paciente foi vacinado contra gripe na última campanha?")
	d.yesNo("MAE_VAC", "se paciente < 6 meses, a mãe recebeu a vacina?")
	d.yesNo("M_AMAMENTA", "se paciente < 6 meses, a mãe amamenta a criança?")
	d.yesNo("ANTIVIRAL", "fez uso de antiviral")
	d.choice("TP_ANTIVIR", model.KindText, "qual antiviral utilizado", []model.Choice{
		c("1", text("Oseltamivir")), c("2", text("Zanamivir")), c("3", text("Outro")), c("", text("Outro")),
	})
	d.text("OUT_ANTIV", "outro antiviral utilizado")
	d.yesNo("HOSPITAL", "o paciente foi internado?")
	d.text("SG_UF_INTE", "unidade federativa de internação do paciente")
	d.text("ID_RG_INTE", "regional de saúde do município de internação do paciente")
	d.text("CO_RG_INTE", "código da regional de saúde do município de internação do paciente")
	d.text("ID_MN_INTE", "município da unidade de saúde onde o paciente internou")
	d.text("CO_MU_INTE", "código do município da unidade de saúde onde o paciente internou")
	d.yesNo("UTI", "o paciente foi internado em UTI?")
	d.choice("SUPORT_VEN", model.KindBool, "o paciente fez uso de suporte ventilatório?", []model.Choice{
		c("1", boolean(true)), c("2", boolean(true)), c("3", boolean(false)), c("9", noBool), c("", noBool),
	}, model.Nullable())
	d.computed(model.TextField("suport_ven_type", "", model.Computed(), model.Nullable(),
		model.Help("quando suport_ven for verdadeiro, qual foi o tipo de suporte ventilatório")))
	d.choice("RAIOX_RES", model.KindText, "resultado de raio X de tórax", []model.Choice{
		c("1", text("Normal")), c("2", text("Infiltrado intersticial")), c("3", text("Consolidação")),
		c("4", text("Misto")), c("5", text("Outro")), c("6", text("Não realizado")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("RAIOX_OUT", "resultado do RX de tórax quando raiox_res for 5")
	d.yesNo("AMOSTRA", "foi realizada coleta de amostra para teste diagnóstico?")
	d.choice("TP_AMOSTRA", model.KindText, "tipo da amostra clínica coletada", []model.Choice{
		c("1", text("Secreção de Nasoorofaringe")), c("2", text("Lavado Broco-alveolar")), c("3", text("Tecido post-mortem")),
		c("4", text("Outra, qual?")), c("5", text("LCR")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("OUT_AMOST", "descrição do tipo da amostra clínica quando tp_amostra for 4")
	d.choice("PCR_RESUL", model.KindText, "resultado do teste de RT-PCR/outro método por biologia molecular", []model.Choice{
		c("1", text("Detectável")), c("2", text("Não Detectável")), c("3", text("Inconclusivo")), c("4", text("Não Realizado")),
		c("5", text("Aguardando Resultado")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.yesNo("POS_PCRFLU", "resultado da RT-PCR foi positivo para influenza?")
	d.choice("TP_FLU_PCR", model.KindText, "tipo de influenza no RT-PCR", []model.Choice{
		c("1", text("Influenza A")), c("2", text("Influenza B")), c("", noText),
	}, model.Nullable())
	d.choice("PCR_FLUASU", model.KindText, "subtipo para influenza A", []model.Choice{
		c("1", text("Influenza A(H1N1)pdm09")), c("2", text("Influenza A (H3N2)")), c("3", text("Influenza A não subtipado")),
		c("4", text("Influenza A não subtipável")), c("5", text("Inconclusivo")), c("6", text("Outro, especifique:")), c("", text("")),
	})
	d.text("FLUASU_OUT", "outro subtipo para influenza A")
	d.choice("PCR_FLUBLI", model.KindText, "linhagem para influenza B", []model.Choice{
		c("1", text("Victoria")), c("2", text("Yamagatha")), c("3", text("Não realizado")), c("4", text("Inconclusivo")),
		c("5", text("Outro, especifique:")), c("", text("")),
	})
	d.text("FLUBLI_OUT", "outra linhagem para influenza B")
	d.yesNo("POS_PCROUT", "resultado da RT-PCR foi positivo para outro vírus respiratório?")
	d.detected("PCR_VSR", "RT-PCR para VSR")
	d.detected("PCR_PARA1", "RT-PCR para parainfluenza 1")
	d.detected("PCR_PARA2", "RT-PCR para parainfluenza 2")
	d.detected("PCR_PARA3", "RT-PCR para parainfluenza 3")
	d.detected("PCR_PARA4", "RT-PCR para parainfluenza 4")
	d.detected("PCR_ADENO", "RT-PCR para adenovírus")
	d.detected("PCR_METAP", "RT-PCR para metapneumovírus")
	d.detected("PCR_BOCA", "RT-PCR para bocavírus")
	d.detected("PCR_RINO", "RT-PCR para rinovírus")
	d.detected("PCR_SARS2", "RT-PCR para SARS-CoV-2")
	d.detected("PCR_OUTRO", "RT-PCR para outro vírus respiratório")
	d.text("DS_PCR_OUT", "nome do outro vírus respiratório identificado pelo RT-PCR")
	d.choice("CLASSI_FIN", model.KindBool, "diagnóstico final do caso", []model.Choice{
		c("1", boolean(true)), c("2", boolean(true)), c("3", boolean(true)), c("4", boolean(true)),
		c("5", boolean(true)), c("", boolean(false)),
	})
	d.computed(model.TextField("classi_fin_type", "", model.Computed(), model.Default(text("")),
		model.Help("quando classi_fin for verdadeiro, qual foi o tipo")))
	d.text("CLASSI_OUT", "outro agente etiológico identificado quando classi_fin for 3")
	d.choice("CRITERIO", model.KindText, "critério de confirmação", []model.Choice{
		c("1", text("Laboratorial")), c("2", text("Clínico Epidemiológico")), c("3", text("Clínico")),
		c("4", text("Clínico Imagem")), c("", noText),
	}, model.Nullable())
	d.choice("HISTO_VGM", model.KindText, "histórico de viagem internacional até 14 dias antes dos sintomas", []model.Choice{
		c("1", text("Sim")), c("2", text("Não")), c("9", text(Ignored)), c("0", text("")),
	})
	d.text("PAIS_VGM", "país onde foi realizada a viagem")
	d.text("CO_PS_VGM", "código do país onde foi realizada a viagem")
	d.text("LO_PS_VGM", "local onde foi realizada a viagem")
	d.text("PAC_COCBO", "ocupação profissional do paciente (código)")
	d.text("PAC_DSCBO", "ocupação profissional do paciente")
	d.text("OUT_ANIM", "animal com que o paciente teve contato")
	d.yesNo("DOR_ABD", "paciente apresentou dor abdominal?")
	d.yesNo("FADIGA", "paciente apresentou fadiga?")
	d.yesNo("PERD_OLFT", "paciente apresentou perda do olfato?")
	d.yesNo("PERD_PALA", "paciente apresentou perda do paladar?")
	d.choice("TOMO_RES", model.KindText, "resultado da tomografia", []model.Choice{
		c("1", text("Tipico COVID-19")), c("2", text("Indeterminado COVID-19")), c("3", text("Atípico COVID-19")),
		c("4", text("Negativo para Pneumonia")), c("5", text("Outro")), c("6", text("Não realizado")),
		c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("TOMO_OUT", "resultado da tomografia quando tomo_res for 5")
	d.choice("TP_TES_AN", model.KindText, "tipo do teste antigênico realizado", []model.Choice{
		c("1", text("Imunofluorescência (IF)")), c("2", text("Teste rápido antigênico")), c("", noText),
	}, model.Nullable())
	d.choice("RES_AN", model.KindText, "resultado do teste antigênico", []model.Choice{
		c("1", text("positivo")), c("2", text("Negativo")), c("3", text("Inconclusivo")), c("4", text("Não realizado")),
		c("5", text("Aguardando resultado")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.yesNo("POS_AN_FLU", "teste antigênico positivo para influenza?")
	d.choice("TP_FLU_AN", model.KindText, "tipo de influenza no teste antigênico", []model.Choice{
		c("1", text("Influenza A")), c("2", text("Influenza B")), c("", noText),
	}, model.Nullable())
	d.yesNo("POS_AN_OUT", "teste antigênico positivo para outro vírus respiratório?")
	d.detected("AN_SARS2", "teste antigênico para SARS-CoV-2")
	d.detected("AN_VSR", "teste antigênico para VSR")
	d.detected("AN_PARA1", "teste antigênico para parainfluenza 1")
	d.detected("AN_PARA2", "teste antigênico para parainfluenza 2")
	d.detected("AN_PARA3", "teste antigênico para parainfluenza 3")
	d.detected("AN_ADENO", "teste antigênico para adenovírus")
	d.detected("AN_OUTRO", "teste antigênico para outro vírus respiratório")
	d.text("DS_AN_OUT", "nome do outro vírus respiratório identificado pelo teste antigênico")
	d.choice("TP_AM_SOR", model.KindText, "tipo de amostra sorológica coletada", []model.Choice{
		c("1", text("Sangue/plasma/soro")), c("2", text("Outra, qual?")), c("9", text(Ignored)), c("", text(Ignored)),
	})
	d.text("SOR_OUT", "descrição do tipo da amostra sorológica")
	d.choice("TP_SOR", model.KindText, "tipo do teste sorológico realizado", []model.Choice{
		c("1", text("Teste rápido")), c("2", text("Elisa")), c("3", text("Quimiluminescência")), c("4", text("Outro, qual")), c("", noText),
	}, model.Nullable())
	d.text("OUT_SOR", "descrição do tipo de teste sorológico quando tp_sor for 4")
	d.text("RES_IGG", "resultado da sorologia IgG para SARS-CoV-2")
	d.text("RES_IGM", "resultado da sorologia IgM para SARS-CoV-2")
	d.text("RES_IGA", "resultado da sorologia IgA para SARS-CoV-2")

	// Derived attributes, set by Finalize.
	d.computed(model.IntegerField(DaysToDeath, "", model.Computed(), model.Nullable()))
	d.computed(model.IntegerField(DaysToDeathOther, "", model.Computed(), model.Nullable()))
	d.computed(model.IntegerField(DaysToDischarge, "", model.Computed(), model.Nullable()))
	d.computed(model.TextField(AgeRange, "", model.Computed(), model.Nullable()))
	d.computed(model.IntegerField(Age, "", model.Computed(), model.Nullable()))
	d.computed(model.BoolField(IsDeath, "", model.Computed(), model.Default(boolean(false))))
	d.computed(model.BoolField(IsCure, "", model.Computed(), model.Default(boolean(false))))

	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return model.NewSchema(SchemaName, d.fields...)
}

// Derived attribute names.
const (
	DaysToDeath      = "dias_internacao_a_obito_srag"
	DaysToDeathOther = "dias_internacao_a_obito_outras"
	DaysToDischarge  = "dias_internacao_a_alta"
	AgeRange         = "faixa_etaria"
	Age              = "idade"
	IsDeath          = "is_death"
	IsCure           = "is_cure"
)
