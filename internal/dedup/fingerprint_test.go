package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashInvariants(t *testing.T) {
	base := ContentHash("John Doe Senior Engineer at Acme")

	assert.Len(t, base, 64, "指纹应为sha256的十六进制形式")
	assert.Equal(t, base, ContentHash("John Doe Senior Engineer at Acme"), "相同文本指纹应一致")
	assert.Equal(t, base, ContentHash("  john   doe\n\tsenior   engineer at acme  "), "大小写与空白差异不应影响指纹")

	assert.NotEqual(t, base, ContentHash("Jane Doe Senior Engineer at Acme"), "不同内容指纹应不同")
}

func TestContentHashIgnoresEmbeddedDates(t *testing.T) {
	a := ContentHash("Resume of John Doe Generated on 2023-12-01")
	b := ContentHash("Resume of John Doe Generated on 2024-06-15")
	assert.Equal(t, a, b, "嵌入的ISO日期不应影响指纹")

	c := ContentHash("Resume of John Doe Exported 01/12/2023")
	d := ContentHash("Resume of John Doe Exported 15/06/2024")
	assert.Equal(t, c, d, "斜杠日期不应影响指纹")
}

func TestContentHashKeepsNonASCIIContent(t *testing.T) {
	a := ContentHash("张三 资深后端工程师 北京 2020")
	b := ContentHash("李四 前端开发 上海 2020")
	assert.NotEqual(t, a, b, "内容不同的中文简历不应得到相同指纹")

	c := ContentHash("张三 资深后端工程师 （北京）")
	d := ContentHash("张三   资深后端工程师 北京")
	assert.Equal(t, c, d, "中文标点等格式字符不应影响指纹")

	assert.NotEqual(t, ContentHash("José García Ingeniero"), ContentHash("Jose Garcia Ingeniero"),
		"重音字母是实质内容的一部分")
}

func TestContentHashEmptyText(t *testing.T) {
	assert.Equal(t, "", ContentHash(""), "空文本指纹应为空串")
	assert.Equal(t, "", ContentHash("   \n\t "), "纯空白文本指纹应为空串")
}

func TestPersonSoftIDDeterministic(t *testing.T) {
	a := PersonSoftID("John", "Doe", "+1-212-555-0100")
	b := PersonSoftID("john", "DOE", "(212) 555-0100")

	assert.Len(t, a, 16, "软标识应为16个十六进制字符")
	assert.Equal(t, a, b, "大小写与电话格式差异不应改变软标识")

	assert.Equal(t, a, PersonSoftID("Dr. John", "Doe", "+1-212-555-0100"), "称谓前缀不应改变软标识")
	assert.NotEqual(t, a, PersonSoftID("John", "Doe", "+1-310-555-0100"), "区号不同应得到不同软标识")
	assert.NotEqual(t, a, PersonSoftID("Jane", "Doe", "+1-212-555-0100"), "姓名不同应得到不同软标识")
}

func TestPersonSoftIDNoIdentityFallsBackToRandom(t *testing.T) {
	a := PersonSoftID("", "", "")
	b := PersonSoftID("", "", "")

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b, "无任何身份信息时每次应得到不同的随机标识")
}

func TestPersonSoftIDShortPhoneIgnored(t *testing.T) {
	// 不足7位的电话不参与标识
	a := PersonSoftID("John", "Doe", "12345")
	b := PersonSoftID("John", "Doe", "")
	assert.Equal(t, a, b, "过短的电话不应参与软标识")
}

func TestPhonesSimilar(t *testing.T) {
	assert.True(t, PhonesSimilar("+1-212-555-0100", "+1-212-555-0100"), "相同号码应相似")
	assert.True(t, PhonesSimilar("+1-212-555-0100", "212-555-0100"), "末7位相同应相似")
	assert.True(t, PhonesSimilar("5550100", "+1 (212) 555-0100"), "本地号与完整号应相似")

	// 末4位规则仅在双方都是完整号码时生效
	assert.True(t, PhonesSimilar("2125551234", "21255501234"), "长度差1且末4位相同应相似")
	assert.False(t, PhonesSimilar("2125551234", "2125559999"), "末4位不同应不相似")

	assert.False(t, PhonesSimilar("12345", "2125550100"), "过短的号码不参与比较")
	assert.False(t, PhonesSimilar("", ""), "空号码不相似")
}

func TestNormalizeNameForMatch(t *testing.T) {
	assert.Equal(t, "johndoe", NormalizeNameForMatch("  John Doe "), "姓名匹配归一化应去空白并小写")
	assert.Equal(t, "smith", NormalizeNameForMatch("Dr. Smith"), "称谓应被剥离")
}
