package form

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/workflow"
)

// 本地时间输入的两种写法，与浏览器 datetime-local 控件产出一致。
var releaseTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// VestingFields 是归属计划表单的原始输入，全部为字符串。ReleaseTime
// 是不带时区的本地时间，构建时按配置的时区解释并换算成 Unix 秒。
type VestingFields struct {
	Amount           string `json:"amount"`
	Beneficiary      string `json:"beneficiary"`
	StakeholderType  string `json:"stakeholder_type"`
	ReleaseTime      string `json:"release_time"`
	OrganisationName string `json:"organisation_name"`
	Description      string `json:"description"`
}

// MintFields 是铸币表单的原始输入。
type MintFields struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// WhitelistFields 是白名单表单的原始输入。
type WhitelistFields struct {
	Address string `json:"address"`
}

// Builder 把表单输入转换成类型化的工作流请求。所有检查都在本地完成，
// 不发起任何网络调用。
type Builder struct {
	location *time.Location
}

// NewBuilder 构造表单构建器。loc 为 nil 时使用进程本地时区解释
// ReleaseTime 输入。
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{location: loc}
}

// BuildVestingSchedule 校验并构造归属计划请求。缺失的字段会被逐一
// 列出，一次性反馈给调用方，而不是在第一个缺失处停下。
func (b *Builder) BuildVestingSchedule(fields VestingFields) (workflow.VestingScheduleRequest, error) {
	var missing []string
	if strings.TrimSpace(fields.Amount) == "" {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(fields.Beneficiary) == "" {
		missing = append(missing, "beneficiary")
	}
	if strings.TrimSpace(fields.StakeholderType) == "" {
		missing = append(missing, "stakeholderType")
	}
	if strings.TrimSpace(fields.ReleaseTime) == "" {
		missing = append(missing, "releaseTime")
	}
	if strings.TrimSpace(fields.OrganisationName) == "" {
		missing = append(missing, "organisationName")
	}
	if strings.TrimSpace(fields.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return workflow.VestingScheduleRequest{}, incomplete(missing)
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(fields.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return workflow.VestingScheduleRequest{}, xerrors.New(workflow.CodeIncompleteRequest,
			fmt.Sprintf("归属数量非法: %q", fields.Amount))
	}
	beneficiary, err := b.parseAddress("beneficiary", fields.Beneficiary)
	if err != nil {
		return workflow.VestingScheduleRequest{}, err
	}
	stakeholder, err := workflow.ParseStakeholderType(fields.StakeholderType)
	if err != nil {
		return workflow.VestingScheduleRequest{}, err
	}
	releaseTime, err := b.parseReleaseTime(fields.ReleaseTime)
	if err != nil {
		return workflow.VestingScheduleRequest{}, err
	}

	req := workflow.VestingScheduleRequest{
		Amount:           amount,
		Beneficiary:      beneficiary,
		StakeholderType:  stakeholder,
		ReleaseTime:      releaseTime,
		OrganisationName: strings.TrimSpace(fields.OrganisationName),
		Description:      strings.TrimSpace(fields.Description),
	}
	if err := req.Validate(); err != nil {
		return workflow.VestingScheduleRequest{}, err
	}
	return req, nil
}

// BuildMint 校验并构造铸币请求。
func (b *Builder) BuildMint(fields MintFields) (workflow.MintRequest, error) {
	var missing []string
	if strings.TrimSpace(fields.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(fields.Amount) == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return workflow.MintRequest{}, incomplete(missing)
	}

	recipient, err := b.parseAddress("recipient", fields.Recipient)
	if err != nil {
		return workflow.MintRequest{}, err
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(fields.Amount), 10, 64)
	if err != nil {
		return workflow.MintRequest{}, xerrors.New(workflow.CodeIncompleteRequest,
			fmt.Sprintf("铸造数量非法: %q", fields.Amount))
	}

	req := workflow.MintRequest{Recipient: recipient, Amount: amount}
	if err := req.Validate(); err != nil {
		return workflow.MintRequest{}, err
	}
	return req, nil
}

// BuildWhitelist 校验并构造白名单请求。
func (b *Builder) BuildWhitelist(fields WhitelistFields) (workflow.WhitelistRequest, error) {
	if strings.TrimSpace(fields.Address) == "" {
		return workflow.WhitelistRequest{}, incomplete([]string{"address"})
	}
	address, err := b.parseAddress("address", fields.Address)
	if err != nil {
		return workflow.WhitelistRequest{}, err
	}
	return workflow.WhitelistRequest{Address: address}, nil
}

func (b *Builder) parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, xerrors.New(workflow.CodeIncompleteRequest,
			fmt.Sprintf("%s 不是合法的地址: %q", field, raw))
	}
	return common.HexToAddress(trimmed), nil
}

// parseReleaseTime 把本地时间输入换算成 Unix 秒。
func (b *Builder) parseReleaseTime(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range releaseTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, b.location); err == nil {
			return parsed.Unix(), nil
		}
	}
	return 0, xerrors.New(workflow.CodeIncompleteRequest,
		fmt.Sprintf("释放时间格式非法: %q", raw))
}

func incomplete(missing []string) error {
	return xerrors.New(workflow.CodeIncompleteRequest,
		fmt.Sprintf("缺少必填字段: %s", strings.Join(missing, ", ")))
}
